// Copyright 2025 CoreSet Selection Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package training holds the placeholder model-improvement utility. It trains
// a small two-layer classifier on a synthetic dataset so the surrounding
// plumbing (configuration, invocation, reporting) can be exercised before a
// real training backend exists. Nothing here is meant to produce a useful
// model.
package training

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
)

// Sample is one labeled feature vector of the synthetic dataset.
type Sample struct {
	Features []float64
	Label    int
}

// FakeDataset generates a deterministic synthetic classification dataset.
// Each class gets its own random center; samples are the center plus noise,
// which makes the problem learnable enough for the loss to visibly fall.
func FakeDataset(samples, features, classes int, seed int64) []Sample {
	rng := rand.New(rand.NewSource(seed))

	centers := make([][]float64, classes)
	for c := range centers {
		centers[c] = make([]float64, features)
		for i := range centers[c] {
			centers[c][i] = rng.NormFloat64() * 2
		}
	}

	out := make([]Sample, samples)
	for i := range out {
		label := i % classes
		vec := make([]float64, features)
		for j := range vec {
			vec[j] = centers[label][j] + rng.NormFloat64()*0.5
		}
		out[i] = Sample{Features: vec, Label: label}
	}
	return out
}

// Model is a fixed two-layer classifier: linear, ReLU, linear. Weights are
// plain float64 slices; this is a placeholder, not an ML framework.
type Model struct {
	inputs  int
	hidden  int
	classes int

	w1 [][]float64 // hidden x inputs
	b1 []float64
	w2 [][]float64 // classes x hidden
	b2 []float64
}

// NewModel creates a classifier with small random initial weights.
func NewModel(inputs, hidden, classes int, seed int64) *Model {
	rng := rand.New(rand.NewSource(seed))

	m := &Model{
		inputs:  inputs,
		hidden:  hidden,
		classes: classes,
		w1:      randomMatrix(rng, hidden, inputs),
		b1:      make([]float64, hidden),
		w2:      randomMatrix(rng, classes, hidden),
		b2:      make([]float64, classes),
	}
	return m
}

func randomMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	scale := 1 / math.Sqrt(float64(cols))
	out := make([][]float64, rows)
	for r := range out {
		out[r] = make([]float64, cols)
		for c := range out[r] {
			out[r][c] = rng.NormFloat64() * scale
		}
	}
	return out
}

// forward runs one sample through the network, returning the hidden
// activations and the class probabilities.
func (m *Model) forward(features []float64) (hidden, probs []float64) {
	hidden = make([]float64, m.hidden)
	for h := range hidden {
		sum := m.b1[h]
		for i, x := range features {
			sum += m.w1[h][i] * x
		}
		if sum > 0 {
			hidden[h] = sum
		}
	}

	logits := make([]float64, m.classes)
	for c := range logits {
		sum := m.b2[c]
		for h, a := range hidden {
			sum += m.w2[c][h] * a
		}
		logits[c] = sum
	}
	return hidden, softmax(logits)
}

// softmax converts logits to probabilities, shifted by the max for numeric
// stability.
func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}
	probs := make([]float64, len(logits))
	var total float64
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		total += probs[i]
	}
	for i := range probs {
		probs[i] /= total
	}
	return probs
}

// TrainResult summarizes a completed training run.
type TrainResult struct {
	Epochs      int       `json:"epochs"`
	EpochLosses []float64 `json:"epoch_losses"`
	FinalLoss   float64   `json:"final_loss"`
}

// Train runs plain SGD with cross-entropy loss over the dataset for the given
// number of epochs, logging the mean loss per epoch.
func (m *Model) Train(dataset []Sample, epochs int, learningRate float64) (*TrainResult, error) {
	if len(dataset) == 0 {
		return nil, fmt.Errorf("empty dataset")
	}
	if epochs < 1 {
		return nil, fmt.Errorf("epochs must be positive, got %d", epochs)
	}

	result := &TrainResult{Epochs: epochs, EpochLosses: make([]float64, 0, epochs)}
	for epoch := 0; epoch < epochs; epoch++ {
		var epochLoss float64
		for _, sample := range dataset {
			epochLoss += m.step(sample, learningRate)
		}
		meanLoss := epochLoss / float64(len(dataset))
		result.EpochLosses = append(result.EpochLosses, meanLoss)
		slog.Info("training epoch finished", "epoch", epoch+1, "loss", meanLoss)
	}
	result.FinalLoss = result.EpochLosses[len(result.EpochLosses)-1]
	return result, nil
}

// step applies one SGD update for a single sample and returns its loss.
func (m *Model) step(sample Sample, learningRate float64) float64 {
	hidden, probs := m.forward(sample.Features)
	loss := -math.Log(math.Max(probs[sample.Label], 1e-12))

	// Output layer gradient: probs - one_hot(label).
	dLogits := make([]float64, m.classes)
	copy(dLogits, probs)
	dLogits[sample.Label]--

	// Backprop through the second linear layer into the hidden activations.
	dHidden := make([]float64, m.hidden)
	for c := range dLogits {
		for h := range dHidden {
			dHidden[h] += dLogits[c] * m.w2[c][h]
			m.w2[c][h] -= learningRate * dLogits[c] * hidden[h]
		}
		m.b2[c] -= learningRate * dLogits[c]
	}

	// ReLU gate, then the first linear layer.
	for h := range dHidden {
		if hidden[h] <= 0 {
			continue
		}
		for i, x := range sample.Features {
			m.w1[h][i] -= learningRate * dHidden[h] * x
		}
		m.b1[h] -= learningRate * dHidden[h]
	}
	return loss
}

// EvalResult reports classifier quality over a dataset.
type EvalResult struct {
	Accuracy float64 `json:"accuracy"`
	MeanLoss float64 `json:"mean_loss"`
}

// Evaluate computes accuracy and mean cross-entropy loss over the dataset.
func (m *Model) Evaluate(dataset []Sample) (*EvalResult, error) {
	if len(dataset) == 0 {
		return nil, fmt.Errorf("empty dataset")
	}

	var correct int
	var totalLoss float64
	for _, sample := range dataset {
		_, probs := m.forward(sample.Features)
		totalLoss += -math.Log(math.Max(probs[sample.Label], 1e-12))

		best := 0
		for c, p := range probs {
			if p > probs[best] {
				best = c
			}
		}
		if best == sample.Label {
			correct++
		}
	}
	return &EvalResult{
		Accuracy: float64(correct) / float64(len(dataset)),
		MeanLoss: totalLoss / float64(len(dataset)),
	}, nil
}
