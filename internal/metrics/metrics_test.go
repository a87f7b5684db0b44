package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordUnlock(t *testing.T) {
	created := testutil.ToFloat64(levelUnlocks.WithLabelValues("created"))
	duplicate := testutil.ToFloat64(levelUnlocks.WithLabelValues("duplicate"))

	RecordUnlock(true)
	RecordUnlock(false)
	RecordUnlock(false)

	assert.Equal(t, created+1, testutil.ToFloat64(levelUnlocks.WithLabelValues("created")))
	assert.Equal(t, duplicate+2, testutil.ToFloat64(levelUnlocks.WithLabelValues("duplicate")))
}

func TestRecordGraph_Status(t *testing.T) {
	before := testutil.ToFloat64(graphRequests.WithLabelValues("STEPS", "WEEK", "error"))

	RecordGraph("STEPS", "WEEK", time.Now(), errors.New("boom"))

	assert.Equal(t, before+1, testutil.ToFloat64(graphRequests.WithLabelValues("STEPS", "WEEK", "error")))
}

func TestRecordDependency(t *testing.T) {
	RecordDependency("redis", errors.New("connection refused"))
	assert.Equal(t, 0.0, testutil.ToFloat64(dependencyUp.WithLabelValues("redis")))

	RecordDependency("redis", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(dependencyUp.WithLabelValues("redis")))
}
