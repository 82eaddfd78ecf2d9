// Package errors はathena全体のエラー型と警告の配送を提供します。
//
// 推定器が返すエラー（未学習、次元不一致、値の不正）と、パイプラインの
// 重大度付きエラー分類（pipeline.go）はどちらも cockroachdb/errors で
// スタックトレースを付与して返されます。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// 警告は1つのハンドラへ配送される。pkg/log がロガー設定時に差し替える。
var (
	warnMu      sync.Mutex
	warnHandler = defaultWarnHandler
)

func defaultWarnHandler(w error) {
	log.Printf("athena-warning: %v\n", w)
}

// SetWarningHandler は警告ハンドラを差し替え、以前のハンドラを返します。
// nil を渡すと警告は破棄されます。
func SetWarningHandler(h func(w error)) (prev func(w error)) {
	warnMu.Lock()
	defer warnMu.Unlock()
	prev = warnHandler
	warnHandler = h
	return prev
}

// Warn は処理を止めない問題を報告します。
func Warn(w error) {
	warnMu.Lock()
	h := warnHandler
	warnMu.Unlock()
	if h != nil {
		h(w)
	}
}

// ConvergenceWarning は反復解法が MaxIter 回で収束しなかったことを示す。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	msg := w.Message
	if msg == "" {
		msg = "increase max_iter or loosen tol"
	}
	return fmt.Sprintf("%s did not converge in %d iterations: %s", w.Algorithm, w.Iterations, msg)
}

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "ConvergenceWarning").
		Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message)
}

func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// UndefinedMetricWarning は指標が定義できず代替値を使ったことを示す。
// 全サイクルが失敗して平均RMSEが NaN になった場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("%s is undefined (%s); using %v", w.Metric, w.Condition, w.Result)
}

func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// cockroachdb/errors の薄いラッパー。呼び出し側は標準の errors を import しない。

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func Wrap(err error, message string) error { return errors.Wrap(err, message) }

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

func New(message string) error { return errors.New(message) }

func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }

func WithStack(err error) error { return errors.WithStack(err) }

var (
	// ErrEmptyData は行数0のデータを受け取ったときに返る。
	ErrEmptyData = New("empty data")
	// ErrSingularMatrix は正規方程式が解けないときに返る。
	ErrSingularMatrix = New("singular matrix")
	// ErrCacheMiss はモデルが保存されていない、または復元できないときに返る。
	ErrCacheMiss = New("model cache miss")
)
