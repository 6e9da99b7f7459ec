package memory

import "math/rand"

// AdditionTask is the distraction exercise between memorization and recall.
type AdditionTask struct {
	A int `json:"a"`
	B int `json:"b"`
}

func (t AdditionTask) Sum() int { return t.A + t.B }

// NewAdditionTask draws both operands uniformly from [min, max].
func NewAdditionTask(r *rand.Rand, min, max int) AdditionTask {
	if max < min {
		min, max = max, min
	}
	span := max - min + 1
	return AdditionTask{
		A: min + r.Intn(span),
		B: min + r.Intn(span),
	}
}
