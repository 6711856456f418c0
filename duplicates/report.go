package duplicates

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Report is the outcome of one detection run.
type Report struct {
	SimilarityThreshold float64
	SimilarThreshold    float64
	IncludeSimilar      bool
	Compared            int // records with an embedding
	Skipped             int // records without an embedding
	Findings            []Finding
}

// Count returns the number of findings of one kind.
func (r *Report) Count(kind Kind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// ByKind returns the findings of one kind in report order.
func (r *Report) ByKind(kind Kind) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

type findingJSON struct {
	Type       string  `json:"type"`
	Lemma1     string  `json:"lemma1"`
	Lemma2     string  `json:"lemma2"`
	Similarity float64 `json:"similarity"`
	File1      string  `json:"file1,omitempty"`
	File2      string  `json:"file2,omitempty"`
}

type reportJSON struct {
	Threshold        float64        `json:"threshold"`
	SimilarThreshold *float64       `json:"similar_threshold"`
	Total            int            `json:"total"`
	Counts           map[string]int `json:"counts"`
	Duplicates       []findingJSON  `json:"duplicates"`
}

// MarshalJSON renders the report in the shape consumed by duplicate analysis
// scripts: lemma1 is the general lemma of a SUBSUMES pair.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		Threshold:  r.SimilarityThreshold,
		Total:      len(r.Findings),
		Counts:     map[string]int{},
		Duplicates: make([]findingJSON, 0, len(r.Findings)),
	}
	if r.IncludeSimilar {
		t := r.SimilarThreshold
		out.SimilarThreshold = &t
	}
	for _, k := range []Kind{KindExact, KindSubsumes, KindSimilar} {
		out.Counts[k.String()] = r.Count(k)
	}
	for _, f := range r.Findings {
		out.Duplicates = append(out.Duplicates, findingJSON{
			Type:       f.Kind.String(),
			Lemma1:     f.General.Name,
			Lemma2:     f.Redundant.Name,
			Similarity: f.Similarity,
			File1:      f.General.Location.String(),
			File2:      f.Redundant.Location.String(),
		})
	}
	return json.Marshal(out)
}

// WriteJSON writes the indented JSON report to w.
func (r *Report) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// WriteFile writes the JSON report to path while holding an exclusive lock on
// path+".lock", waiting at most timeout for a concurrent writer to finish.
func (r *Report) WriteFile(path string, timeout time.Duration) error {
	unlock, err := acquireLock(path+".lock", timeout)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating duplicate report: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("writing duplicate report: %w", err)
	}
	return f.Close()
}

func acquireLock(lockPath string, timeout time.Duration) (func(), error) {
	l := flock.New(lockPath)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return func() {}, fmt.Errorf("cannot acquire report lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, fmt.Errorf("%w (lock: %s)", ErrReportLocked, lockPath)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// Format renders a human readable summary, one section per kind.
func (r *Report) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Compared %d lemmas (%d without embeddings skipped)\n", r.Compared, r.Skipped)
	kinds := []Kind{KindExact, KindSubsumes}
	if r.IncludeSimilar {
		kinds = append(kinds, KindSimilar)
	}
	for _, kind := range kinds {
		fmt.Fprintf(&sb, "  %s: %d\n", strings.ToUpper(kind.String()), r.Count(kind))
	}
	for _, kind := range kinds {
		for _, f := range r.ByKind(kind) {
			switch f.Kind {
			case KindSubsumes:
				fmt.Fprintf(&sb, "\n[%.3f] %s SUBSUMES %s\n", f.Similarity, f.General.Name, f.Redundant.Name)
			default:
				fmt.Fprintf(&sb, "\n[%.3f] %s %s <-> %s\n", f.Similarity, strings.ToUpper(f.Kind.String()),
					f.General.Name, f.Redundant.Name)
			}
			fmt.Fprintf(&sb, "        %s\n        %s\n", f.General.Location, f.Redundant.Location)
		}
	}
	return sb.String()
}
