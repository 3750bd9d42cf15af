package pageview

import "errors"

var (
	ErrNotFound         = errors.New("page view not found")
	ErrTopicNotFound    = errors.New("topic not found")
	ErrForbidden        = errors.New("only the topic's advertiser or an admin may do this")
	ErrPeriodNotAllowed = errors.New("page views can only be entered for the previous month")
	ErrDeadlinePassed   = errors.New("entry deadline for the previous month has passed")
	ErrFuturePeriod     = errors.New("period is in the future")
	ErrAlreadyPaid      = errors.New("already paid")
)
