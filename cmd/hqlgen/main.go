// hqlgen 离线生成/校验 HQL，元数据来自 YAML 文件，不依赖数据库。
//
//	hqlgen --catalog catalog.yaml --request req.json
//	cat req.json | hqlgen --catalog catalog.yaml --json
//	hqlgen --validate view.sql
//	hqlgen --analyze view.sql
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"HQLPreview/internal/config"
	"HQLPreview/internal/hql"
	"HQLPreview/internal/repository"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

func main() {
	var (
		catalogPath  = flag.StringP("catalog", "c", "", "YAML 元数据文件")
		requestPath  = flag.StringP("request", "r", "-", "JSON 请求文件，- 表示标准输入")
		validatePath = flag.String("validate", "", "校验指定的 HQL 文件")
		analyzePath  = flag.String("analyze", "", "评估指定的 HQL 文件")
		configPath   = flag.String("config", "", "配置文件，用于读取 generator 段")
		asJSON       = flag.Bool("json", false, "输出完整 JSON 结果")
		verbose      = flag.BoolP("verbose", "v", false, "输出调试日志")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := run(logger, *catalogPath, *requestPath, *validatePath, *analyzePath, *configPath, *asJSON, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "hqlgen:", err)
		os.Exit(1)
	}
}

func run(logger *logrus.Logger, catalogPath, requestPath, validatePath, analyzePath, configPath string, asJSON bool, out io.Writer) error {
	genCfg := hql.DefaultGeneratorConfig()
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		genCfg = cfg.Generator.ToEngineConfig()
	}

	switch {
	case validatePath != "":
		text, err := os.ReadFile(validatePath)
		if err != nil {
			return err
		}
		res := hql.NewEngine(nil, genCfg, logger).Validate(string(text))
		if err := writeJSON(out, res); err != nil {
			return err
		}
		if !res.IsValid {
			return fmt.Errorf("%d syntax error(s)", len(res.SyntaxErrors))
		}
		return nil
	case analyzePath != "":
		text, err := os.ReadFile(analyzePath)
		if err != nil {
			return err
		}
		return writeJSON(out, hql.NewEngine(nil, genCfg, logger).Analyze(string(text), nil))
	}

	if catalogPath == "" {
		return fmt.Errorf("--catalog is required for generation")
	}
	catalog, err := repository.LoadCatalogFile(catalogPath)
	if err != nil {
		return err
	}
	raw, err := readInput(requestPath)
	if err != nil {
		return err
	}

	engine := hql.NewEngine(catalog, genCfg, logger)
	req, err := engine.ParseRequest(raw)
	if err != nil {
		return err
	}
	res, err := engine.Generate(context.Background(), req)
	if err != nil {
		return fmt.Errorf("%s: %w", hql.ErrorKind(err), err)
	}
	for _, w := range res.Warnings {
		logger.Warn(w)
	}
	if asJSON {
		return writeJSON(out, res)
	}
	_, err = fmt.Fprintln(out, res.HQL)
	return err
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
