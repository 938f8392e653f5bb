package interfaces

// GenerationObserver 生成过程的指标上报
type GenerationObserver interface {
	ObserveGeneration(mode, outcome string, cached bool, seconds float64)
	ObserveError(kind string)
	ObserveValidation(valid bool, warnings int)
	ObserveScore(level string, score int)
	SetCacheSize(size int)
}
