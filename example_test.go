package chanflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/baxromumarov/chanflow"
)

func ExampleSplit() {
	ctx := context.Background()
	src, _ := chanflow.FromSlice(ctx, []int{0, 1, 2, 3, 4, 5})

	parts, err := chanflow.Split(ctx, src, chanflow.WithDegreeOfParallelism(2))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for i, p := range parts {
		items, _ := chanflow.ToSlice(ctx, p)
		fmt.Println(i, items)
	}
	// Output:
	// 0 [0 2 4]
	// 1 [1 3 5]
}

func ExampleFork() {
	ctx := context.Background()
	src, _ := chanflow.FromSlice(ctx, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	outs, _ := chanflow.Fork(ctx, src, []func(int) bool{
		func(v int) bool { return v%2 == 0 },
		func(v int) bool { return v > 5 },
	})
	even, _ := chanflow.ToSlice(ctx, outs[0])
	large, _ := chanflow.ToSlice(ctx, outs[1])
	fmt.Println(even)
	fmt.Println(large)
	// Output:
	// [0 2 4 6 8]
	// [6 7 8 9]
}

func ExampleForAll() {
	ctx := context.Background()
	items := make([]int, 100)
	for i := range items {
		items[i] = i + 1
	}
	src, _ := chanflow.FromSlice(ctx, items)

	var total atomic.Int64
	err := chanflow.ForAll(ctx, src, func(ctx context.Context, v int) error {
		total.Add(int64(v))
		return nil
	}, chanflow.WithDegreeOfParallelism(4))
	fmt.Println(total.Load(), err)
	// Output: 5050 <nil>
}

func ExampleForAll_failFast() {
	ctx := context.Background()
	src, _ := chanflow.FromSlice(ctx, []int{1, 2, 3, 4, 5})

	err := chanflow.ForAll(ctx, src, func(ctx context.Context, v int) error {
		if v == 3 {
			return fmt.Errorf("bad item %d", v)
		}
		return nil
	}, chanflow.WithDegreeOfParallelism(1))

	var se *chanflow.StageError
	fmt.Println(errors.As(err, &se))
	fmt.Println(err)
	// Output:
	// true
	// for-all: task "worker-0" failed: bad item 3
}

func ExampleForEach() {
	ctx := context.Background()
	src, _ := chanflow.FromSlice(ctx, []string{"a", "bb", "ccc"})

	lengths, _ := chanflow.ForEach(ctx, src, func(ctx context.Context, s string) (int, error) {
		return len(s), nil
	}, chanflow.WithDegreeOfParallelism(1))

	items, err := chanflow.ToSlice(ctx, lengths)
	fmt.Println(items, err)
	// Output: [1 2 3] <nil>
}

func ExampleGroupByAdjacent() {
	ctx := context.Background()
	src, _ := chanflow.FromSlice(ctx, []int{1, 1, 2, 3, 3, 3, 1})

	groups, _ := chanflow.GroupByAdjacent(ctx, src, func(v int) int { return v })
	for {
		g, err := groups.Read(ctx)
		if err != nil {
			break
		}
		items, _ := chanflow.ToSlice(ctx, chanflow.Reader[int](g))
		fmt.Println(g.Key(), items)
	}
	// Output:
	// 1 [1 1]
	// 2 [2]
	// 3 [3 3 3]
	// 1 [1]
}

func ExampleMerge() {
	ctx := context.Background()
	a, _ := chanflow.FromSlice(ctx, []int{1, 2, 3})
	b, _ := chanflow.FromSlice(ctx, []int{10, 20})

	merged, _ := chanflow.Merge(ctx, []chanflow.Reader[int]{a, b})
	total := 0
	_ = chanflow.ForAll(ctx, merged, func(ctx context.Context, v int) error {
		total += v
		return nil
	}, chanflow.WithDegreeOfParallelism(1))
	fmt.Println(total)
	// Output: 36
}
