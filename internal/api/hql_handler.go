package api

import (
	"io"
	"net/http"
	"strconv"

	"HQLPreview/internal/hql"
	"HQLPreview/internal/repository"
	"HQLPreview/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// HQLHandler HQL 预览接口
type HQLHandler struct {
	hqlService *service.HQLService
	logger     *logrus.Logger
}

// NewHQLHandler 创建 HQLHandler
func NewHQLHandler(svc *service.HQLService, logger *logrus.Logger) *HQLHandler {
	return &HQLHandler{
		hqlService: svc,
		logger:     logger,
	}
}

// Register 挂载到 /hql-preview-v2/api 分组
func (h *HQLHandler) Register(g *gin.RouterGroup) {
	g.POST("/generate", h.Generate)
	g.POST("/generate-incremental", h.GenerateIncremental)
	g.POST("/validate", h.Validate)
	g.POST("/analyze", h.Analyze)
	g.GET("/cache-stats", h.CacheStats)
	g.POST("/cache-clear", h.ClearCache)
	g.GET("/history", h.ListHistory)
	g.GET("/events", h.ListEvents)
	g.GET("/hql/:fingerprint", h.GetHQL)
}

type hqlBody struct {
	HQL string `json:"hql"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, kind, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg, "kind": kind})
}

// failGeneration 请求问题返回 400，仓储/内部错误返回 500
func (h *HQLHandler) failGeneration(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if !hql.IsUserError(err) {
		status = http.StatusInternalServerError
	}
	fail(c, status, hql.ErrorKind(err), err.Error())
}

func readBody(c *gin.Context) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		fail(c, http.StatusBadRequest, "InvalidRequest", "read body failed: "+err.Error())
		return nil, false
	}
	return raw, true
}

// Generate 生成 HQL
// POST /hql-preview-v2/api/generate
func (h *HQLHandler) Generate(c *gin.Context) {
	raw, okBody := readBody(c)
	if !okBody {
		return
	}
	res, err := h.hqlService.Generate(c.Request.Context(), raw)
	if err != nil {
		h.failGeneration(c, err)
		return
	}
	ok(c, res)
}

// GenerateIncremental 增量生成，请求体为生成请求加 previous_hql / previous_request
// POST /hql-preview-v2/api/generate-incremental
func (h *HQLHandler) GenerateIncremental(c *gin.Context) {
	raw, okBody := readBody(c)
	if !okBody {
		return
	}
	res, err := h.hqlService.GenerateIncremental(c.Request.Context(), raw)
	if err != nil {
		h.failGeneration(c, err)
		return
	}
	ok(c, res)
}

// Validate 校验 HQL
// POST /hql-preview-v2/api/validate {"hql": "..."}
func (h *HQLHandler) Validate(c *gin.Context) {
	var body hqlBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	ok(c, h.hqlService.Validate(body.HQL))
}

// Analyze 性能评估
// POST /hql-preview-v2/api/analyze {"hql": "..."}
func (h *HQLHandler) Analyze(c *gin.Context) {
	var body hqlBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	ok(c, h.hqlService.Analyze(body.HQL))
}

// CacheStats GET /hql-preview-v2/api/cache-stats
func (h *HQLHandler) CacheStats(c *gin.Context) {
	ok(c, h.hqlService.CacheStats())
}

// ClearCache POST /hql-preview-v2/api/cache-clear
func (h *HQLHandler) ClearCache(c *gin.Context) {
	h.hqlService.ClearCache()
	ok(c, gin.H{"cleared": true})
}

// ListHistory 生成历史
// GET /hql-preview-v2/api/history?game_gid=10000147&mode=single&page=1&page_size=20
func (h *HQLHandler) ListHistory(c *gin.Context) {
	gameGID, _ := strconv.ParseInt(c.Query("game_gid"), 10, 64)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := repository.HistoryFilter{
		GameGID: gameGID,
		Mode:    c.Query("mode"),
	}
	result, err := h.hqlService.ListHistory(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("ListHistory failed")
		fail(c, http.StatusInternalServerError, "RepositoryError", err.Error())
		return
	}
	ok(c, result)
}

// ListEvents 可选事件列表
// GET /hql-preview-v2/api/events?game_gid=10000147&page=1&page_size=20
func (h *HQLHandler) ListEvents(c *gin.Context) {
	gameGID, _ := strconv.ParseInt(c.Query("game_gid"), 10, 64)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.hqlService.ListEvents(c.Request.Context(), gameGID, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("ListEvents failed")
		fail(c, http.StatusInternalServerError, "RepositoryError", err.Error())
		return
	}
	ok(c, result)
}

// GetHQL 按请求指纹取回 HQL
// GET /hql-preview-v2/api/hql/:fingerprint
func (h *HQLHandler) GetHQL(c *gin.Context) {
	fp := c.Param("fingerprint")
	result, err := h.hqlService.LookupHQL(c.Request.Context(), fp)
	if err != nil {
		h.logger.WithError(err).Error("GetHQL failed")
		fail(c, http.StatusInternalServerError, "RepositoryError", err.Error())
		return
	}
	if result == nil {
		fail(c, http.StatusNotFound, "NotFound", "hql not found for fingerprint "+fp)
		return
	}
	ok(c, result)
}
