package common

import (
	"math/rand"
	"sync"
	"time"
)

// Dice draws uniform values in [0,100).
type Dice interface {
	Roll() float64
}

type randomDice struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewDice() Dice {
	return &randomDice{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (d *randomDice) Roll() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Float64() * 100
}

// Pick maps one roll of d onto an index in [0,n).
func Pick(d Dice, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(d.Roll() / 100 * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
