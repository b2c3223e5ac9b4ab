package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateText(t *testing.T) {
	tests := []struct {
		text string
		want Rating
	}{
		{"Hola, buenas tardes", RatingInitial},
		{"me interesa comprar un departamento", RatingWarm},
		{"cuál es el presupuesto mínimo?", RatingWarm},
		{"quiero invertir en la riviera", RatingWarm},
		{"quiero visitar el proyecto", RatingHot},
		{"puede llamarme mañana?", RatingHot},
		{"es urgente, necesito mudarme", RatingHot},
		{"puedo agendar una cita?", RatingHot},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, RateText(tt.text))
		})
	}
}

func TestRatingOrderingAndParse(t *testing.T) {
	assert.True(t, RatingCold < RatingInitial)
	assert.True(t, RatingInitial < RatingWarm)
	assert.True(t, RatingWarm < RatingHot)

	for _, r := range []Rating{RatingCold, RatingInitial, RatingWarm, RatingHot} {
		assert.Equal(t, r, ParseRating(r.String()))
	}
	assert.Equal(t, RatingCold, ParseRating("garbage"))
}
