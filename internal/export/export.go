// Package export splits training pairs into train/eval sets and writes them.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

// DefaultTrainRatio is the share of pairs that go to the training set.
const DefaultTrainRatio = 0.9

// Split shuffles a copy of pairs with seed and cuts it at ratio. The same
// input and seed always give the same split.
func Split(pairs []ticket.Pair, ratio float64, seed int64) (train, eval []ticket.Pair) {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	shuffled := make([]ticket.Pair, len(pairs))
	copy(shuffled, pairs)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	cut := int(float64(len(shuffled)) * ratio)
	return shuffled[:cut], shuffled[cut:]
}

// Paths returns the train and eval file names for prefix in dir.
func Paths(dir, prefix string) (train, eval string) {
	return filepath.Join(dir, prefix+"_train.json"), filepath.Join(dir, prefix+"_eval.json")
}

// WriteJSON writes both sets as JSON arrays. Empty sets are written as [].
func WriteJSON(dir, prefix string, train, eval []ticket.Pair) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	trainPath, evalPath := Paths(dir, prefix)
	if err := writeArray(trainPath, train); err != nil {
		return err
	}
	return writeArray(evalPath, eval)
}

func writeArray(path string, pairs []ticket.Pair) error {
	if pairs == nil {
		pairs = []ticket.Pair{}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteJSONL writes one pair per line.
func WriteJSONL(path string, pairs []ticket.Pair) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, p := range pairs {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("encode pair: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// ReadJSON loads a JSON array of pairs, as written by WriteJSON.
func ReadJSON(path string) ([]ticket.Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var pairs []ticket.Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return pairs, nil
}
