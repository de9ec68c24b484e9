package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// CAS（version一致）の更新で0件だったとき。呼び出し側でリトライする
	ErrVersionConflict = errors.New("version conflict")

	// 一意制約違反
	ErrDuplicate = errors.New("duplicate")
)
