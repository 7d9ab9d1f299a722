package fdm

import (
	"math"
	"testing"
)

func BenchmarkFDM(b *testing.B) {

	central, err := NewCentral(4, 1)
	if err != nil {
		b.Fatal(err)
	}

	adapted, err := NewCentral(4, 1, WithAdapt(3))
	if err != nil {
		b.Fatal(err)
	}

	b.Run("EvaluateStep/Central/Points=5", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			EvaluateStep(central, math.Sin, 1.0, 1e-3)
		}
	})

	b.Run("Evaluate/Central/Points=5/Adapt=1", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			Evaluate(central, math.Sin, 1.0)
		}
	})

	b.Run("Evaluate/Central/Points=5/Adapt=3", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			Evaluate(adapted, math.Sin, 1.0)
		}
	})

	b.Run("EvaluateCached/Central/Points=5", func(b *testing.B) {
		Evaluate(central, math.Sin, 1.0)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			EvaluateCached(central, math.Sin, 1.0)
		}
	})

	b.Run("Extrapolate/Central/Points=3", func(b *testing.B) {
		m, err := NewCentral(2, 1)
		if err != nil {
			b.Fatal(err)
		}
		for i := 0; i < b.N; i++ {
			if _, _, err := Extrapolate(m, math.Sin, 1.0, ExtrapolationLiteral{}); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("NewCentral/Points=20", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			// hits the stencil cache after the first iteration
			if _, err := NewCentral(15, 5); err != nil {
				b.Fatal(err)
			}
		}
	})
}
