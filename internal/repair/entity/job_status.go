package entity

import (
	"errors"
	"fmt"
	"time"
)

// JobStatus 维修工单状态
type JobStatus string

const (
	JobStatusReceived        JobStatus = "RECEIVED"         // 已接收
	JobStatusDiagnosed       JobStatus = "DIAGNOSED"        // 已诊断
	JobStatusWaitingApproval JobStatus = "WAITING_APPROVAL" // 等待客户确认
	JobStatusInRepair        JobStatus = "IN_REPAIR"        // 维修中
	JobStatusWaitingParts    JobStatus = "WAITING_PARTS"    // 等待备件
	JobStatusTesting         JobStatus = "TESTING"          // 测试中
	JobStatusReadyForPickup  JobStatus = "READY_FOR_PICKUP" // 待取机
	JobStatusCompleted       JobStatus = "COMPLETED"        // 已完成
	JobStatusCancelled       JobStatus = "CANCELLED"        // 已取消
	JobStatusOnHold          JobStatus = "ON_HOLD"          // 挂起
)

// AllJobStatuses 全部工单状态（按正常流转顺序）
var AllJobStatuses = []JobStatus{
	JobStatusReceived,
	JobStatusDiagnosed,
	JobStatusWaitingApproval,
	JobStatusInRepair,
	JobStatusWaitingParts,
	JobStatusTesting,
	JobStatusReadyForPickup,
	JobStatusCompleted,
	JobStatusCancelled,
	JobStatusOnHold,
}

var (
	ErrUnknownStatus  = errors.New("unknown job status")
	ErrTerminalStatus = errors.New("job is in a terminal status")
	ErrInitialStatus  = errors.New("RECEIVED is only set at intake")
)

// Valid 是否为已定义的状态
func (s JobStatus) Valid() bool {
	for _, st := range AllJobStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal 终态不允许再流转
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

func (s JobStatus) String() string {
	return string(s)
}

// ParseJobStatus 解析状态字符串
func ParseJobStatus(v string) (JobStatus, error) {
	s := JobStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, v)
	}
	return s, nil
}

// CheckTransition 校验状态流转。
// Only leaving a terminal status, unknown targets and RECEIVED as a target are rejected;
// any non-terminal status may move to any other status.
func CheckTransition(from, to JobStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: cannot change %s to %s", ErrTerminalStatus, from, to)
	}
	if to == JobStatusReceived {
		return ErrInitialStatus
	}
	return nil
}

// ApplyStatus 执行状态流转并维护派生字段
func (j *Job) ApplyStatus(to JobStatus, now time.Time) error {
	if err := CheckTransition(j.Status, to); err != nil {
		return err
	}
	from := j.Status
	switch {
	case to == JobStatusOnHold && from != JobStatusOnHold:
		j.HoldFromStatus = from
	case to != JobStatusOnHold:
		j.HoldFromStatus = ""
	}
	if to.IsTerminal() && j.CompletionDate == nil {
		t := now
		j.CompletionDate = &t
	}
	j.Status = to
	return nil
}

// ResumeTarget 挂起前的状态，没有记录时回到 RECEIVED 之后的诊断阶段
func (j *Job) ResumeTarget() (JobStatus, bool) {
	if j.Status != JobStatusOnHold {
		return "", false
	}
	if j.HoldFromStatus == "" || j.HoldFromStatus == JobStatusReceived {
		return JobStatusDiagnosed, true
	}
	return j.HoldFromStatus, true
}
