package gather

import (
	"fmt"

	"github.com/Comcast/laters/core"
	"github.com/Comcast/laters/run"
)

func ExampleAll() {
	q := run.NewQueue()
	a, ra := core.New(q)
	b, rb := core.New(q)

	f := All(q, []*core.Future{a, b})
	f.Then(func(v interface{}) (interface{}, error) {
		fmt.Printf("gathered %v\n", v)
		return nil, nil
	}, nil)

	rb.Fulfill("beta")
	ra.Fulfill("alpha")
	q.Drain()

	// Output:
	// gathered [alpha beta]
}

func ExampleRace() {
	q := run.NewQueue()
	slow, _ := core.New(q)
	fast, rfast := core.New(q)

	f := Race(q, []*core.Future{slow, fast})
	rfast.Fulfill("fast")
	q.Drain()

	fmt.Println(f)

	// Output:
	// fulfilled/"fast"
}
