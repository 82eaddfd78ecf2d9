package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "LinearRegression".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed: "fit", "predict", "score".
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase: "validation", "training", "selection".
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
)

// Metrics and timing.
const (
	DurationMsKey = "perf.duration_ms"
	R2ScoreKey    = "metrics.r2_score"
	RMSEKey       = "metrics.rmse"
	ThresholdKey  = "metrics.threshold"
	IterationKey  = "training.iteration"
)

// Pipeline context.
const (
	// RunIDKey carries the UUID of a pipeline run.
	RunIDKey = "run.id"

	// ZoneKey names the zone being processed.
	ZoneKey = "zone.name"

	// AlgorithmKey names the candidate algorithm.
	AlgorithmKey = "algorithm.name"

	// CycleKey is the walk-forward cycle index.
	CycleKey = "cv.cycle"

	// ResourceStateKey is the monitor state: NORMAL, ELEVATED, CRITICAL, ABORTED.
	ResourceStateKey = "resource.state"

	CPUPercentKey = "resource.cpu_percent"
	RAMPercentKey = "resource.ram_percent"

	// StageKey is the selection stage that produced a model: cv, r2, hard_fallback.
	StageKey = "selection.stage"

	SensitiveKey = "bias.sensitive"
	FeatureKey   = "bias.feature"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"

	PhaseValidation = "validation"
	PhaseTraining   = "training"
	PhaseSelection  = "selection"
	PhaseBias       = "bias"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorSingularMatrix    = "SINGULAR_MATRIX"
)
