package orders

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

type Rand interface {
	Intn(n int) int
}

// Generator выдаёт номера вида LBC12345. Уникальность обеспечивает индекс в БД.
type Generator struct {
	mu sync.Mutex
	r  Rand
}

func NewGenerator(r Rand) *Generator {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{r: r}
}

func (g *Generator) Next() string {
	g.mu.Lock()
	n := 10000 + g.r.Intn(90000)
	g.mu.Unlock()
	return fmt.Sprintf("LBC%d", n)
}
