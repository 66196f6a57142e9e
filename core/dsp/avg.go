package dsp

import "math"

// Smoothing of consecutive spectrum frames.
type Smoothing string

// All smoothing modes.
const (
	SmoothingNone    Smoothing = ""
	SmoothingAverage Smoothing = "avg"
	SmoothingMax     Smoothing = "max"
)

type smoother interface {
	Put(row []float64) []float64
}

func newSmoother(mode Smoothing, length, blockSize int) smoother {
	if length < 1 {
		length = 1
	}
	switch mode {
	case SmoothingAverage:
		return newAverager(length, blockSize)
	case SmoothingMax:
		return newMaxer(length, blockSize)
	}
	return nil
}

func newAverager(length, blockSize int) *averager {
	result := &averager{
		length:  length,
		buffer:  make([][]float64, length),
		index:   0,
		current: make([]float64, blockSize),
	}
	for i := range result.buffer {
		result.buffer[i] = make([]float64, blockSize)
	}
	return result
}

type averager struct {
	length  int
	buffer  [][]float64
	index   int
	current []float64
}

func (a *averager) Put(row []float64) []float64 {
	for i := range row {
		a.current[i] += ((row[i] - a.buffer[a.index][i]) / float64(a.length))
	}
	a.buffer[a.index] = row
	a.index = (a.index + 1) % a.length
	return append([]float64{}, a.current...)
}

func newMaxer(length, blockSize int) *maxer {
	result := &maxer{
		length:  length,
		buffer:  make([][]float64, length),
		index:   0,
		current: make([]float64, blockSize),
	}
	for i := range result.buffer {
		result.buffer[i] = make([]float64, blockSize)
		for j := range result.buffer[i] {
			result.buffer[i][j] = math.Inf(-1)
		}
	}
	return result
}

type maxer struct {
	length  int
	buffer  [][]float64
	index   int
	current []float64
}

func (m *maxer) Put(row []float64) []float64 {
	m.buffer[m.index] = row
	m.index = (m.index + 1) % m.length
	for i := range row {
		m.current[i] = math.Inf(-1)
		for _, r := range m.buffer {
			m.current[i] = math.Max(m.current[i], r[i])
		}
	}
	return append([]float64{}, m.current...)
}
