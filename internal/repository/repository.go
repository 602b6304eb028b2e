package repository

import "errors"

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict 模板版本校验失败（携带 expectedVersion 的更新与当前版本不一致）
var ErrVersionConflict = errors.New("template version conflict")

// ErrNoHistory 覆盖没有可回退的历史快照
var ErrNoHistory = errors.New("no history to revert")

// ErrNotRevertable 覆盖当前 action 不是 modify，不能回退
var ErrNotRevertable = errors.New("override is not revertable")
