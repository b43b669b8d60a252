package service

import "errors"

var (
	ErrCompanyNotFound      = errors.New("company not found")
	ErrCompanyAlreadyExists = errors.New("company already exists")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrScheduleNotFound     = errors.New("no scheduled update exists")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrVersionConflict      = errors.New("concurrent update, retry the request")
	ErrNoActiveSubscription = errors.New("company has no active gateway subscription")
)
