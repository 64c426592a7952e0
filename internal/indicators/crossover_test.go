package indicators

import "testing"

func TestDetectCrossover(t *testing.T) {
	tests := []struct {
		name        string
		short, long []string
		index       int
		want        Crossover
	}{
		{"golden cross at last point", []string{"1", "1", "3"}, []string{"2", "2", "2"}, 2, CrossoverBelow},
		{"golden cross still holding", []string{"1", "3", "3"}, []string{"2", "2", "2"}, 1, CrossoverBelow},
		{"touching counts as crossed", []string{"1", "2"}, []string{"2", "2"}, 1, CrossoverBelow},
		{"golden cross already reversed", []string{"1", "3", "1"}, []string{"2", "2", "2"}, 1, CrossoverNone},
		{"death cross", []string{"3", "3", "1"}, []string{"2", "2", "2"}, 2, CrossoverAbove},
		{"death cross then touch", []string{"3", "1", "2"}, []string{"2", "2", "2"}, 1, CrossoverAbove},
		{"death cross already reversed", []string{"3", "1", "3"}, []string{"2", "2", "2"}, 1, CrossoverNone},
		{"crossing earlier than index", []string{"1", "3", "3"}, []string{"2", "2", "2"}, 2, CrossoverNone},
		{"equal before index", []string{"2", "3"}, []string{"2", "2"}, 1, CrossoverNone},
		{"no change", []string{"1", "1", "1"}, []string{"2", "2", "2"}, 2, CrossoverNone},
		{"index zero", []string{"1", "3"}, []string{"2", "2"}, 0, CrossoverNone},
		{"index past end", []string{"1", "3"}, []string{"2", "2"}, 2, CrossoverNone},
		{"negative index", []string{"1", "3"}, []string{"2", "2"}, -1, CrossoverNone},
		{"length mismatch", []string{"1", "3", "4"}, []string{"2", "2"}, 1, CrossoverNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectCrossover(prices(tt.short...), prices(tt.long...), tt.index)
			if got != tt.want {
				t.Fatalf("DetectCrossover=%v, expected %v", got, tt.want)
			}
		})
	}
}

func TestDetectCrossoverSwapSymmetry(t *testing.T) {
	mirror := map[Crossover]Crossover{
		CrossoverNone:  CrossoverNone,
		CrossoverBelow: CrossoverAbove,
		CrossoverAbove: CrossoverBelow,
	}
	series := [][]string{
		{"1", "2", "3", "4", "5"},
		{"5", "4", "3", "2", "1"},
		{"3", "3", "3", "3", "3"},
		{"1", "5", "1", "5", "1"},
		{"2", "4", "4", "2", "3"},
	}
	for _, a := range series {
		for _, b := range series {
			for index := -1; index <= len(a); index++ {
				direct := DetectCrossover(prices(a...), prices(b...), index)
				swapped := DetectCrossover(prices(b...), prices(a...), index)
				if swapped != mirror[direct] {
					t.Fatalf("a=%v b=%v index=%d: direct=%v swapped=%v", a, b, index, direct, swapped)
				}
			}
		}
	}
}
