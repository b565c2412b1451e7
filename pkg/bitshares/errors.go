package bitshares

import "errors"

var (
	ErrAccountNotFound      = errors.New("account does not exist")
	ErrAmbiguousAccount     = errors.New("more than one account found, please specify the correct account name")
	ErrAssetNotFound        = errors.New("asset not found")
	ErrSubscribeUnsupported = errors.New("caller does not support subscriptions")
)
