/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package dbpool

import (
	"context"
	"errors"

	"gorm.io/gorm"

	liberr "github.com/nabbar/reactord/errors"
)

// user mirrors the single `username, password` row the legacy schema
// reads out of its `user` table. Passwords are stored and compared in
// plain text, matching the table's historical shape; there is no hashing
// layer to port because the original never had one.
type user struct {
	Username string `gorm:"column:username"`
	Password string `gorm:"column:password"`
}

func (user) TableName() string {
	return "user"
}

// VerifyUser implements the login/register check the request handler
// performs against the `user` table: on login, it succeeds only if a row
// with the given username and password exists; on register, it fails if
// the username is already taken and otherwise inserts the new row.
func VerifyUser(ctx context.Context, pool *Pool, name, pwd string, isLogin bool) (bool, liberr.Error) {
	lease, err := NewLease(ctx, pool)
	if err != nil {
		return false, err
	}
	defer lease.Release()

	db := lease.Handle().DB().WithContext(ctx)

	var existing user
	findErr := db.Where("username = ?", name).Limit(1).Find(&existing).Error
	found := existing.Username != ""

	if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
		e := ErrorUserVerify.Error(nil)
		e.Add(findErr)
		return false, e
	}

	if isLogin {
		if !found {
			return false, nil
		}
		return existing.Password == pwd, nil
	}

	// Registration: reject a taken username, otherwise insert it.
	if found {
		return false, nil
	}

	if createErr := db.Create(&user{Username: name, Password: pwd}).Error; createErr != nil {
		e := ErrorUserVerify.Error(nil)
		e.Add(createErr)
		return false, e
	}

	return true, nil
}
