/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package utils holds the gin response helpers shared by every HTTP
// surface.
package utils

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

// ApiError is the unified JSON error envelope of the REST surfaces.
type ApiError struct {
	HttpCode   int    `json:"-"`
	StatusCode string `json:"statusCode"`
	Code       string `json:"code"`
	ErrorName  string `json:"error"`
	Message    string `json:"message"`
}

// Error returns the error message string.
func (e *ApiError) Error() string {
	return e.Message
}

// AbortWithApiError converts the error into the envelope, records it on the
// gin context for the request logger, and aborts the request.
func AbortWithApiError(c *gin.Context, err error) {
	handleErrors(c, err)
	rsp := ConvertToApiError(err)
	c.AbortWithStatusJSON(rsp.HttpCode, rsp)
}

// ConvertToApiError maps any error onto the closed error set; foreign
// errors render as InternalError.
func ConvertToApiError(err error) *ApiError {
	var result *ApiError
	if errors.As(err, &result) {
		return result
	}
	code := storageerrors.GetErrorCode(err)
	httpCode := storageerrors.GetHttpCode(err)
	if code == "" {
		code = storageerrors.InternalError
		httpCode = http.StatusInternalServerError
	}
	return &ApiError{
		HttpCode:   httpCode,
		StatusCode: strconv.Itoa(httpCode),
		Code:       code,
		ErrorName:  code,
		Message:    err.Error(),
	}
}

func handleErrors(c *gin.Context, err error) {
	var errs []error
	if aggregate, ok := err.(utilerrors.Aggregate); ok {
		errs = aggregate.Errors()
	} else {
		errs = []error{err}
	}
	for _, val := range errs {
		if val != nil {
			_ = c.Error(val)
		}
	}
}
