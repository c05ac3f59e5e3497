package svc

import "errors"

// ErrUnknownStorageDriver 错误：未知的存储驱动
var ErrUnknownStorageDriver = errors.New("unknown storage driver")

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")
