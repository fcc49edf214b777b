package logic

import (
	"testing"

	"github.com/coldbrew/cps/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireByWallet(t *testing.T) {
	db := newTestDB(t)
	l := NewUserLogic(db)

	// 首次出现自动建档
	user, err := l.RequireByWallet("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.NotZero(t, user.Id)

	// 大小写不同的同一地址命中同一用户
	again, err := l.RequireByWallet("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, user.Id, again.Id)

	upper, err := l.RequireByWallet("0X1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, user.Id, upper.Id)

	_, err = l.RequireByWallet("not-an-address")
	assert.ErrorIs(t, err, normalize.ErrInvalidAddress)

	_, err = l.GetById(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
