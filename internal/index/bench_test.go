package index

import (
	"fmt"
	"testing"
)

func benchLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("%d;0;1;28;0;7;5;0;", i)
	}
	return lines
}

func BenchmarkBuild(b *testing.B) {
	lines := benchLines(10000)
	for _, mode := range Modes {
		b.Run(mode.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				Build(lines, mode)
			}
		})
	}
}

func BenchmarkQuery(b *testing.B) {
	lines := benchLines(10000)
	target := lines[len(lines)-1]
	for _, mode := range Modes {
		idx := Build(lines, mode)
		b.Run(mode.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = Query(idx, mode, target)
			}
		})
	}
}
