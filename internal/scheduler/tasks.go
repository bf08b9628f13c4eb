// Package scheduler defines the asynq task types the worker consumes and
// the client that enqueues them.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskNurtureSweep = "engine.nurture.sweep"

const TaskRecomputeScores = "engine.recompute.scores"

const TaskRecomputeAccounts = "engine.recompute.accounts"

// CompanyJobPayload scopes a background job to one tenant.
type CompanyJobPayload struct {
	CompanyID string `json:"companyId"`
	DryRun    bool   `json:"dryRun"`
}

func NewNurtureSweepTask(payload CompanyJobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNurtureSweep, data), nil
}

func NewRecomputeScoresTask(payload CompanyJobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecomputeScores, data), nil
}

func NewRecomputeAccountsTask(payload CompanyJobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecomputeAccounts, data), nil
}

func ParseCompanyJobPayload(task *asynq.Task) (CompanyJobPayload, error) {
	var payload CompanyJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CompanyJobPayload{}, err
	}
	return payload, nil
}
