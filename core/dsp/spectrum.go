package dsp

import (
	"math"

	"github.com/mjibson/go-dsp/dsputils"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// NewSpectrum returns a new spectrum analyzer for blocks of at most maxBlockSize samples.
func NewSpectrum(maxBlockSize int, smoothing Smoothing, smoothingLength int) *Spectrum {
	return &Spectrum{
		maxBlockSize:    maxBlockSize,
		smoothing:       smoothing,
		smoothingLength: smoothingLength,
	}
}

// Spectrum calculates the magnitude spectrum in dB of blocks of real valued samples.
type Spectrum struct {
	maxBlockSize    int
	smoothing       Smoothing
	smoothingLength int

	blockSize int
	smoother  smoother
}

// Calculate the spectrum of the given samples. The result contains blockSize/2 bins.
func (s *Spectrum) Calculate(samples []float64) []float64 {
	blockSize := findBlocksize(len(samples), s.maxBlockSize)
	if blockSize < 2 {
		return []float64{}
	}
	if blockSize != s.blockSize {
		s.blockSize = blockSize
		s.smoother = newSmoother(s.smoothing, s.smoothingLength, blockSize/2)
	}

	block := padZero(samples, blockSize)
	w := window.Blackman(blockSize)
	for i := range block {
		block[i] *= w[i]
	}

	result := magnitudes(fft.FFTReal(block))
	if s.smoother != nil {
		result = s.smoother.Put(result)
	}
	return result
}

func findBlocksize(width, max int) int {
	result := dsputils.NextPowerOf2(width)
	if max > 0 && result > max {
		return max
	}
	return result
}

func padZero(samples []float64, size int) []float64 {
	result := make([]float64, size)
	copy(result, samples)
	return result
}

func magnitudes(cfft []complex128) []float64 {
	blockSize := len(cfft)
	result := make([]float64, blockSize/2)
	for i := range result {
		result[i] = fftValueToDB(cfft[i], blockSize)
	}
	return result
}

func fftValueToDB(fftValue complex128, blockSize int) float64 {
	return 20.0 * math.Log10(2*math.Sqrt(math.Pow(real(fftValue), 2)+math.Pow(imag(fftValue), 2))/float64(blockSize))
}
