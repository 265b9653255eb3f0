// Copyright 2018 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors_test

import (
	stderrors "errors"
	"net/http"

	"github.com/alien-bunny/hutch/lib/errors"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Error handler library", func() {
	const (
		errmsg     = "qwerty"
		verbosemsg = "asdfghzxcvbn"
	)

	Describe("The Fail function", func() {
		It("must trigger a panic", func() {
			Expect(func() {
				errors.Fail(http.StatusInternalServerError, errors.New(""))
			}).To(Panic())
		})
	})

	Describe("The wrapped error", func() {
		wrappedErr := errors.NewError(errmsg, verbosemsg)
		It("should wrap an error message with the verbose message", func() {
			Expect(wrappedErr.Error()).To(Equal(errmsg))
			Expect(wrappedErr.UserError()).To(Equal(verbosemsg))
		})

		wrappedVerboseOnlyErr := errors.NewError("", verbosemsg)
		It("should wrap an empty error message, replacing it with the verbose error", func() {
			Expect(wrappedVerboseOnlyErr.Error()).To(Equal(verbosemsg))
			Expect(wrappedVerboseOnlyErr.UserError()).To(Equal(verbosemsg))
		})
	})

	Describe("The panic type", func() {
		p := errors.Panic{
			Err: stderrors.New(errmsg),
		}
		pv := errors.Panic{
			Err: errors.NewError(errmsg, verbosemsg),
		}
		It("should wrap the error message", func() {
			Expect(p.Error()).To(Equal(errmsg))
			Expect(p.String()).To(Equal(errmsg))
			Expect(p.UserError()).To(BeZero())
			Expect(pv.Error()).To(Equal(errmsg))
			Expect(pv.UserError()).To(Equal(verbosemsg))
		})
	})

	Describe("The multi error", func() {
		It("should skip nil errors", func() {
			Expect(errors.NewMultiError([]error{nil, nil})).To(BeNil())
		})

		It("should join the messages of its parts", func() {
			merr := errors.NewMultiError([]error{
				stderrors.New(errmsg),
				errors.NewError(errmsg, verbosemsg),
			})
			Expect(merr.Error()).To(Equal(errmsg + "; " + errmsg))
			Expect(merr.(errors.Error).UserError()).To(Equal(verbosemsg))
		})
	})

	Describe("The API error", func() {
		It("should generate an item from the status text", func() {
			apierr := errors.NewAPIError(http.StatusNotFound)
			Expect(apierr.Status).To(Equal(http.StatusNotFound))
			Expect(apierr.Items).To(HaveLen(1))
			Expect(apierr.Items[0].Code).To(Equal("not_found"))
		})

		It("should set the source on every item", func() {
			apierr := errors.NewAPIError(http.StatusBadRequest,
				errors.C("invalid_sort"),
				errors.CD("invalid_limit", "limit must be positive"),
			).WithSourceParameter("sort")
			for _, item := range apierr.Items {
				Expect(item.Source).NotTo(BeNil())
				Expect(item.Source.Parameter).To(Equal("sort"))
			}
		})

		It("should be extractable from an error chain", func() {
			apierr := errors.NewAPIError(http.StatusConflict)
			wrapped := errors.Wrap(apierr, "conflict")

			converted, ok := errors.ConvertAPIError(wrapped)
			Expect(ok).To(BeTrue())
			Expect(converted).To(Equal(apierr))

			_, ok = errors.ConvertAPIError(nil)
			Expect(ok).To(BeFalse())

			_, ok = errors.ConvertAPIError(stderrors.New(errmsg))
			Expect(ok).To(BeFalse())
		})
	})
})
