package localization

import "math/rand"

// randSource is the resampling RNG. It is kept separate from the Gaussian
// sampling in Move (which goes through gonum/stat/distuv's default global
// source) because systematic resampling only needs one uniform draw per
// update, not a distribution object.
type randSource struct {
	r *rand.Rand
}

func newRand() *randSource {
	return &randSource{r: rand.New(rand.NewSource(1))}
}

func (s *randSource) Float64() float64 {
	return s.r.Float64()
}
