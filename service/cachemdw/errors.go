package cachemdw

import "errors"

var (
	ErrReplyIsNotRejection = errors.New("reply does not reject the destination")
)
