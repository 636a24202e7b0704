package worker_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smogcast/smogcast/internal/worker"
)

func newDispatcher(assessor *fakeAssessor) *worker.Dispatcher {
	job := worker.NewAssessmentJob(worker.AssessmentJobConfig{
		Config:   worker.RefreshConfig{Targets: testTargets()},
		Logger:   zerolog.Nop(),
		Assessor: assessor,
	})
	return worker.NewDispatcher(job, zerolog.Nop())
}

func TestDispatcher_Dispatch(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		failLat      float64
		failAll      bool
		wantUnknown  bool
		wantErr      bool
		wantAssessed int
	}{
		{name: "assessment refresh", payload: `{"job_type":"assessment_refresh"}`, failLat: -1, wantAssessed: 3},
		{name: "partial refresh is not an error", payload: `{"job_type":"assessment_refresh"}`, failLat: 3, wantAssessed: 3},
		{name: "failed refresh", payload: `{"job_type":"assessment_refresh"}`, failAll: true, wantErr: true, wantAssessed: 3},
		{name: "health check", payload: `{"job_type":"health_check"}`, failLat: -1, wantAssessed: 1},
		{name: "failed health check", payload: `{"job_type":"health_check"}`, failLat: 1, wantErr: true, wantAssessed: 1},
		{name: "unknown job", payload: `{"job_type":"reindex"}`, wantUnknown: true},
		{name: "malformed payload", payload: `not json`, wantUnknown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessor := &fakeAssessor{failLat: tt.failLat, failAll: tt.failAll}
			d := newDispatcher(assessor)

			err := d.Dispatch(context.Background(), []byte(tt.payload))

			switch {
			case tt.wantUnknown:
				require.ErrorIs(t, err, worker.ErrUnknownJob)
			case tt.wantErr:
				require.Error(t, err)
				assert.NotErrorIs(t, err, worker.ErrUnknownJob)
			default:
				require.NoError(t, err)
			}
			assert.Len(t, assessor.assessed, tt.wantAssessed)
		})
	}
}
