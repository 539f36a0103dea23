// Package errors provides custom error types for product-related operations.
package errors

import "errors"

var (
	// ErrProductNotFound is returned when no product exists with the requested ID.
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock is returned when a decrement would drive
	// stock_quantity below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidProduct is returned when a write violates a field constraint,
	// such as a negative quantity or threshold.
	ErrInvalidProduct = errors.New("invalid product")
)
