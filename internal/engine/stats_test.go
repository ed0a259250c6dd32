package engine

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func TestSummary_PreservesInsertionOrder(t *testing.T) {
	s := newSummary()
	s.add(KindPerson, HandlerStats{Lines: 1})
	s.add(KindSession, HandlerStats{Lines: 2})
	s.add(KindPerson, HandlerStats{Lines: 3})

	assert.Equal(t, []Kind{KindPerson, KindSession}, s.kinds)
	hs, ok := s.Stats(KindPerson)
	assert.True(t, ok)
	assert.Equal(t, 3, hs.Lines, "re-adding replaces, not appends")
}

func TestSummary_Totals(t *testing.T) {
	s := newSummary()
	s.add(KindSession, HandlerStats{Lines: 3, Errors: 1, Adds: 1, Deletes: 1, Seconds: 2})
	s.add(KindPerson, HandlerStats{Lines: 120, Adds: 25, Updates: 80, Deletes: 15, Seconds: 41})

	totals := s.Totals()
	assert.Equal(t, 123, totals.Lines)
	assert.Equal(t, 1, totals.Errors)
	assert.Equal(t, 26, totals.Adds)
	assert.Equal(t, 80, totals.Updates)
	assert.Equal(t, 16, totals.Deletes)
	assert.Equal(t, 43, totals.Seconds)
}

func TestSummary_RenderGolden(t *testing.T) {
	s := newSummary()
	s.add(KindSession, HandlerStats{Lines: 3, Errors: 1, Adds: 1, Deletes: 1, Seconds: 2})
	s.add(KindPerson, HandlerStats{Lines: 120, Adds: 25, Updates: 80, Deletes: 15, Seconds: 41})

	g := goldie.New(t)
	g.Assert(t, "summary", []byte(s.Render()))
}
