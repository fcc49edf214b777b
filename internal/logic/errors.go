package logic

import (
	"errors"
)

var (
	// ErrNotFound 记录不存在或不属于调用者。对非属主统一表现为不存在，
	// 避免泄露记录是否存在。
	ErrNotFound = errors.New("not found")
	// ErrInvalid 请求参数校验失败，调用方可修正后重试
	ErrInvalid = errors.New("invalid request")
	// ErrHandleTaken 收款链接 handle 已被占用
	ErrHandleTaken = errors.New("handle already in use")
	// ErrInvoicePaid 已支付发票不可归档、不可改价
	ErrInvoicePaid = errors.New("invoice already paid")
	// ErrInvalidAllocation 分账份额合计不等于10000基点
	ErrInvalidAllocation = errors.New("recipient allocations must total 10000 basis points")
)

// 结算校验失败原因码。属于业务结果而非异常，调用方据此给出具体提示。
const (
	ReasonInvoiceNotFound   = "invoice_not_found"
	ReasonNotRegistered     = "invoice_not_registered"
	ReasonInvoiceUnpaid     = "invoice_unpaid"
	ReasonAmountMismatch    = "amount_mismatch"
	ReasonReferenceMismatch = "reference_mismatch"
	ReasonOwnerMissing      = "owner_missing"
)
