// Copyright © 2021 Marina Rupe
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package em

import "github.com/pkg/errors"

// ErrModel means no read or genome is left for estimation.
var ErrModel = errors.New("em: empty model")

// ErrNumerical means a likelihood term or a normalizing denominator
// is not positive, which only comes from malformed scores.
var ErrNumerical = errors.New("em: numerical error")

// IsModelError tells whether err is caused by ErrModel.
func IsModelError(err error) bool { return errors.Cause(err) == ErrModel }

// IsNumericalError tells whether err is caused by ErrNumerical.
func IsNumericalError(err error) bool { return errors.Cause(err) == ErrNumerical }
