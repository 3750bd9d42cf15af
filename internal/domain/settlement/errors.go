package settlement

import "errors"

var (
	ErrNotFound             = errors.New("page view not found")
	ErrTopicNotFound        = errors.New("topic not found")
	ErrUnauthorized         = errors.New("only the topic's advertiser or an admin may settle")
	ErrAlreadyPaid          = errors.New("already paid")
	ErrNotConfirmed         = errors.New("page views are not confirmed")
	ErrThresholdNotMet      = errors.New("page views below the topic threshold")
	ErrNoFee                = errors.New("topic has no ad fee")
	ErrNoArticles           = errors.New("no articles for this topic")
	ErrSettlementInProgress = errors.New("settlement in progress")
	ErrNoSuccessfulPayouts  = errors.New("no payouts succeeded")
	ErrClaimLost            = errors.New("settlement claim was lost before the page view was marked paid")
)
