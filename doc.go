// Package athena selects, validates and trains regression models for many
// zones of a time-indexed dataset, designed for unattended batch runs on
// shared machines.
//
// Every active column of the dataset is a zone. For each zone Athena checks
// the training data for correlation bias against sensitive columns, picks
// candidate algorithms from the data's velocity and cardinality, estimates
// each candidate with rolling-origin cross-validation under a CPU/RAM guard,
// trains the first candidate that clears the R² threshold and falls back to
// the lowest-RMSE result when none does.
//
// # Quick Start
//
// Run the pipeline from a YAML configuration:
//
//	athena run --config athena.yaml --non-interactive
//
// or drive it from Go:
//
//	cfg, err := config.Load("athena.yaml", ".env")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rc, err := pipeline.Build(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rc.Close()
//	if err := rc.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Packages
//
//   - algorithm: algorithm names, lightweight alternatives and the estimator registry
//   - linear, tree, ensemble, neighbors: the regression estimators
//   - metrics: RMSE, MAE and R²
//   - preprocessing: feature scaling
//   - dataset: time-indexed tables, CSV loading and zone derivation
//   - bias: correlation bias and model attribution bias detection
//   - selector: velocity/cardinality based candidate selection
//   - validation: rolling-origin cross-validation with resource guarding
//   - training: final fit, scoring and model persistence
//   - selection: soft and hard fallback resolution
//   - resource: CPU/RAM sampling and the usage state machine
//   - decision: operator decisions, interactive or defaulted
//   - notify: alert delivery to stdout, files and Kafka
//   - report: per-zone aggregation, exports and bias charts
//   - store, benchmark: model persistence and historical R² benchmarks
//   - pipeline: the run context and per-zone orchestration
//   - config: YAML/env configuration
//   - core/model, core/parallel: estimator state and parallel helpers
//   - pkg/errors, pkg/log: error taxonomy and structured logging
package athena
