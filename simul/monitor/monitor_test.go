package monitor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatsUpdate(t *testing.T) {
	m := map[string]string{"servers": "1"}
	stat := NewStats(m, nil)
	fresh := stat.String()

	stat.Update(newSingleMeasure("round", 10))
	stat.Update(newSingleMeasure("round", 20))

	require.NotEqual(t, fresh, stat.String(), "stats should change after an update")
	v := stat.Value("round")
	require.NotNil(t, v)
	require.Equal(t, 2, v.NumValue())
	require.Equal(t, float64(15), v.Avg())
}

func TestStatsKeyOrder(t *testing.T) {
	m := map[string]string{"servers": "1", "hosts": "1", "bf": "2"}
	m1 := newSingleMeasure("round", 10)
	m2 := newSingleMeasure("setup", 5)

	stat := NewStats(m, nil)
	stat.Update(m1)
	stat.Update(m2)
	str := new(bytes.Buffer)
	stat.WriteHeader(str)
	stat.WriteValues(str)

	stat2 := NewStats(m, nil)
	stat2.Update(m1)
	stat2.Update(m2)
	str2 := new(bytes.Buffer)
	stat2.WriteHeader(str2)
	stat2.WriteValues(str2)

	require.True(t, bytes.Equal(str.Bytes(), str2.Bytes()), "key order / output should be stable for identical stats")
}

func TestAverageStats(t *testing.T) {
	a := NewStats(map[string]string{"servers": "1"}, nil)
	a.Update(newSingleMeasure("round", 10))

	b := NewStats(map[string]string{"servers": "1"}, nil)
	b.Update(newSingleMeasure("round", 20))

	avg := AverageStats([]*Stats{a, b})
	avg.Collect()
	v := avg.Value("round")
	require.NotNil(t, v)
	require.Equal(t, float64(15), v.Avg())
}
