package data

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/oracle"
)

const maxLineSize = 4 * 1024 * 1024

// ReadAdditionTask parses the addition-task index format: one sample per
// line, "i j sum", where i and j index images in the source dataset. The
// image indices become the sample's raw input; Pred is left for the
// perception model to fill.
func ReadAdditionTask(r io.Reader) ([]*Sample, error) {
	scanner := bufio.NewScanner(r)
	var samples []*Sample
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: want operands and a sum: %w", lineNum, internalerr.ErrInvalidInput)
		}
		nums := make([]int, len(fields))
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			nums[i] = n
		}
		samples = append(samples, &Sample{
			ID: strconv.Itoa(len(samples)),
			X:  nums[:len(nums)-1],
			Y:  oracle.Value(nums[len(nums)-1]),
		})
	}
	return samples, scanner.Err()
}

// ReadJSONLines decodes one Sample per non-empty line.
func ReadJSONLines(r io.Reader) ([]*Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var samples []*Sample
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var s Sample
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if s.ID == "" {
			s.ID = strconv.Itoa(len(samples))
		}
		samples = append(samples, &s)
	}
	return samples, scanner.Err()
}

// WriteJSONLines encodes one Sample per line.
func WriteJSONLines(w io.Writer, samples []*Sample) error {
	enc := json.NewEncoder(w)
	for _, s := range samples {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("sample %q: %w", s.ID, err)
		}
	}
	return nil
}
