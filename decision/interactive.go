package decision

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

// Interactive prompts an operator on out and reads answers from in. End of
// input falls back to the Defaults answer for every remaining question.
type Interactive struct {
	in     *bufio.Reader
	out    io.Writer
	logger log.Logger
}

// NewInteractive returns a Provider reading answers from in.
func NewInteractive(in io.Reader, out io.Writer) *Interactive {
	return &Interactive{
		in:     bufio.NewReader(in),
		out:    out,
		logger: log.GetLoggerWithName("decision"),
	}
}

func (p *Interactive) Interactive() bool { return true }

// ask prints prompt and returns the trimmed answer. io.EOF is returned once
// input is exhausted.
func (p *Interactive) ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func yes(answer string, def bool) bool {
	switch strings.ToLower(answer) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (p *Interactive) menu(options []string, zeroLabel string) {
	for i, o := range options {
		fmt.Fprintf(p.out, " [%d] %s\n", i+1, o)
	}
	if zeroLabel != "" {
		fmt.Fprintf(p.out, " [0] %s\n", zeroLabel)
	}
}

func interactiveChoices() []string {
	out := make([]string, 0, len(algorithm.Interactive)+1)
	for _, a := range algorithm.Interactive {
		out = append(out, a.String())
	}
	return append(out, "all")
}

// ChooseAlgorithms offers a multi-select menu when bias was detected and a
// single-choice menu otherwise.
func (p *Interactive) ChooseAlgorithms(ctx context.Context, suggested algorithm.Algorithm, biasDetected bool) ([]algorithm.Algorithm, bool, error) {
	choices := interactiveChoices()
	all := len(choices)

	if biasDetected {
		fmt.Fprintf(p.out, "\nWARNING: potential bias detected. Suggested algorithm: %s\n", suggested)
		ans, err := p.ask(ctx, "Do you want to manually select which algorithms to run? [Y/n]: ")
		if err != nil {
			return p.eof(err)
		}
		if !yes(ans, true) {
			return nil, false, nil
		}
		fmt.Fprintln(p.out, "Choose algorithms:")
		p.menu(choices, "")
		ans, err = p.ask(ctx, "Enter numbers of algorithms (comma-separated), or 'all': ")
		if err != nil {
			return p.eof(err)
		}
		if strings.EqualFold(ans, "all") {
			return append([]algorithm.Algorithm(nil), algorithm.Interactive...), true, nil
		}
		var picked []algorithm.Algorithm
		for _, part := range strings.Split(ans, ",") {
			idx, err := strconv.Atoi(strings.TrimSpace(part))
			switch {
			case err != nil:
				fmt.Fprintf(p.out, "Invalid input: %s\n", part)
			case idx == all:
				return append([]algorithm.Algorithm(nil), algorithm.Interactive...), true, nil
			case idx >= 1 && idx < all:
				picked = append(picked, algorithm.Interactive[idx-1])
			default:
				fmt.Fprintf(p.out, "Invalid selection: %s\n", part)
			}
		}
		if len(picked) == 0 {
			fmt.Fprintf(p.out, "No valid algorithms selected, using suggested: %s\n", suggested)
			return []algorithm.Algorithm{suggested}, true, nil
		}
		return algorithm.Dedupe(picked), true, nil
	}

	fmt.Fprintf(p.out, "Recommended algorithm: %s\n", suggested)
	ans, err := p.ask(ctx, "Do you want to use the suggested algorithm? [Y/n]: ")
	if err != nil {
		return p.eof(err)
	}
	if yes(ans, true) {
		return nil, false, nil
	}
	fmt.Fprintln(p.out, "Choose algorithm:")
	p.menu(choices, "")
	ans, err = p.ask(ctx, "Enter number: ")
	if err != nil {
		return p.eof(err)
	}
	idx, convErr := strconv.Atoi(ans)
	switch {
	case convErr == nil && idx == all:
		return append([]algorithm.Algorithm(nil), algorithm.Interactive...), true, nil
	case convErr == nil && idx >= 1 && idx < all:
		return []algorithm.Algorithm{algorithm.Interactive[idx-1]}, true, nil
	}
	p.logger.Warn("Invalid algorithm choice, using suggested", "answer", ans)
	fmt.Fprintf(p.out, "Invalid choice, using suggested: %s\n", suggested)
	return nil, false, nil
}

func (p *Interactive) eof(err error) ([]algorithm.Algorithm, bool, error) {
	if err == io.EOF {
		return nil, false, nil
	}
	return nil, false, err
}

var shapeLabels = map[algorithm.Shape]string{
	algorithm.ShapeNumeric:     "Mostly numbers that can have decimals (e.g., temperatures, sales, measurements)",
	algorithm.ShapeBinary:      "Mostly values that are only 0 or 1 (e.g., on/off, yes/no)",
	algorithm.ShapeCategorical: "Mostly whole numbers that represent categories or choices",
	algorithm.ShapeMixed:       "A mix of different data types",
}

// DataShape asks for the dominant data type.
func (p *Interactive) DataShape(ctx context.Context) (algorithm.Shape, error) {
	fmt.Fprintln(p.out, "Tell me more about the data you will use for the prediction (besides date/time):")
	labels := make([]string, len(algorithm.Shapes))
	for i, s := range algorithm.Shapes {
		labels[i] = shapeLabels[s]
	}
	p.menu(labels, "Not sure / My data is complex")
	ans, err := p.ask(ctx, "Enter the corresponding number (or 0 if not sure): ")
	if err == io.EOF {
		return algorithm.ShapeUnsure, nil
	}
	if err != nil {
		return algorithm.ShapeUnsure, err
	}
	idx, convErr := strconv.Atoi(ans)
	if convErr != nil || idx < 0 || idx > len(algorithm.Shapes) {
		p.logger.Warn("Invalid choice in data type selection, using default order", "answer", ans)
		return algorithm.ShapeUnsure, nil
	}
	if idx == 0 {
		return algorithm.ShapeUnsure, nil
	}
	return algorithm.Shapes[idx-1], nil
}

// ResolveExhaustion offers shrink, skip or abandon. Invalid answers skip.
func (p *Interactive) ResolveExhaustion(ctx context.Context, e Exhaustion) (Resolution, error) {
	fmt.Fprintf(p.out, "\nHigh resource usage with algorithm '%s' (zone %s). What would you like to do?\n", e.Algorithm, e.Zone)
	p.menu([]string{"Reduce dataset", "Try a lighter algorithm", "Skip this algorithm"}, "")
	ans, err := p.ask(ctx, "Enter your choice (1-3): ")
	if err == io.EOF {
		return Skip, nil
	}
	if err != nil {
		return Skip, err
	}

	switch ans {
	case "1":
		if !e.CanShrink {
			fmt.Fprintln(p.out, "The dataset cannot be reduced any further. Skipping this algorithm.")
			return Skip, nil
		}
		return Shrink, nil
	case "2":
		if len(e.Alternatives) > 0 {
			names := make([]string, len(e.Alternatives))
			for i, a := range e.Alternatives {
				names[i] = a.String()
			}
			fmt.Fprintf(p.out, "Consider trying one of these lighter algorithms: %s\n", strings.Join(names, ", "))
		} else {
			fmt.Fprintln(p.out, "No other algorithms available to try.")
		}
		return Skip, nil
	case "3":
		fmt.Fprintf(p.out, "Skipping algorithm '%s'.\n", e.Algorithm)
		return Abandon, nil
	}
	p.logger.Warn("Invalid user choice for resource handling", "answer", ans, log.AlgorithmKey, e.Algorithm.String())
	fmt.Fprintln(p.out, "Invalid choice. Skipping this algorithm.")
	return Skip, nil
}

// ConfirmAccept asks a yes/no question defaulting to no.
func (p *Interactive) ConfirmAccept(ctx context.Context, zone string, a algorithm.Algorithm, r2, threshold float64) (bool, error) {
	prompt := fmt.Sprintf("Zone %s: %s reached R²=%.4f (threshold %.4f). Accept it and stop here? [y/N]: ", zone, a, r2, threshold)
	ans, err := p.ask(ctx, prompt)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "read confirmation")
	}
	return yes(ans, false), nil
}

var _ Provider = (*Interactive)(nil)
