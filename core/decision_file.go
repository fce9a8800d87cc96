package core

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/signalsfoundry/production-optimizer/model"
)

// ParseDecisionVectors reads one decision vector per line. A line is a flat
// sequence of boolean literals (True/False, true/false, T/F, 1/0) separated
// by commas or whitespace, optionally wrapped in () or []. Blank lines and
// lines starting with '#' are skipped. Every vector must have exactly bits
// flags.
func ParseDecisionVectors(r io.Reader, bits int) ([]model.DecisionVector, error) {
	var out []model.DecisionVector
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := parseDecisionLine(line)
		if err != nil {
			return nil, &model.ConfigurationError{
				Field:  fmt.Sprintf("decisions line %d", lineNo),
				Reason: err.Error(),
			}
		}
		if len(v) != bits {
			return nil, &model.ConfigurationError{
				Field:  fmt.Sprintf("decisions line %d", lineNo),
				Reason: fmt.Sprintf("vector has %d flags, want %d", len(v), bits),
			}
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read decision vectors: %w", err)
	}
	return out, nil
}

// ParseDecisionVector parses a single vector literal, as found on one line of
// a decision-vector file.
func ParseDecisionVector(s string) (model.DecisionVector, error) {
	v, err := parseDecisionLine(strings.TrimSpace(s))
	if err != nil {
		return nil, &model.ConfigurationError{Field: "decisions", Reason: err.Error()}
	}
	return v, nil
}

func parseDecisionLine(line string) (model.DecisionVector, error) {
	if n := len(line); n >= 2 {
		if (line[0] == '(' && line[n-1] == ')') || (line[0] == '[' && line[n-1] == ']') {
			line = line[1 : n-1]
		}
	}
	tokens := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	v := make(model.DecisionVector, len(tokens))
	for i, tok := range tokens {
		switch strings.ToLower(tok) {
		case "true", "t", "1":
			v[i] = true
		case "false", "f", "0":
			v[i] = false
		default:
			return nil, fmt.Errorf("token %d: %q is not a boolean literal", i+1, tok)
		}
	}
	return v, nil
}

// WriteDecisionVectors writes vectors in the format ParseDecisionVectors
// reads, preceded by a comment naming each position.
func WriteDecisionVectors(w io.Writer, layout model.DecisionLayout, vectors []model.DecisionVector) error {
	bw := bufio.NewWriter(w)
	if len(layout) > 0 {
		if _, err := fmt.Fprintf(bw, "# %s\n", strings.Join(layout.Names(), ", ")); err != nil {
			return err
		}
	}
	for _, v := range vectors {
		if _, err := fmt.Fprintln(bw, v.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
