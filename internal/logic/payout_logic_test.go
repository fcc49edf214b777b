package logic

import (
	"testing"
	"time"

	"github.com/coldbrew/cps/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecipients(shares ...int64) []RecipientInput {
	out := make([]RecipientInput, 0, len(shares))
	addrs := []string{
		"0x5555555555555555555555555555555555555555",
		"0x6666666666666666666666666666666666666666",
		"0x7777777777777777777777777777777777777777",
	}
	for i, s := range shares {
		out = append(out, RecipientInput{Address: addrs[i%len(addrs)], ShareBps: s})
	}
	return out
}

func createTestSchedule(t *testing.T, l *PayoutLogic) *model.PayoutScheduleModel {
	t.Helper()
	schedule, err := l.CreateSchedule(testOwner, CreateScheduleInput{
		Name:         "Team split",
		TokenAddress: testToken,
		ChainId:      11155111,
		Recipients:   testRecipients(3000, 3000, 4000),
	})
	require.NoError(t, err)
	return schedule
}

func TestCreateScheduleSharesMustSumToTotal(t *testing.T) {
	db := newTestDB(t)
	l := NewPayoutLogic(db)

	schedule := createTestSchedule(t, l)
	require.Len(t, schedule.Recipients, 3)

	_, err := l.CreateSchedule(testOwner, CreateScheduleInput{
		Name:         "Empty split",
		TokenAddress: testToken,
		ChainId:      11155111,
	})
	assert.ErrorIs(t, err, ErrInvalid)

	for _, shares := range [][]int64{
		{3000, 3000, 3000}, // 9000
		{5000, 5001},       // 10001
	} {
		_, err := l.CreateSchedule(testOwner, CreateScheduleInput{
			Name:         "Broken split",
			TokenAddress: testToken,
			ChainId:      11155111,
			Recipients:   testRecipients(shares...),
		})
		assert.ErrorIs(t, err, ErrInvalidAllocation, "shares %v", shares)
	}

	// 校验失败不残留半成品
	var count int64
	require.NoError(t, db.Model(&model.PayoutScheduleModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateScheduleReplacesRecipients(t *testing.T) {
	db := newTestDB(t)
	l := NewPayoutLogic(db)
	schedule := createTestSchedule(t, l)

	// 非法的新名单整体拒绝，原名单不动
	bad := testRecipients(1, 2)
	err := l.UpdateSchedule(testOwner, schedule.Id, nil, &bad)
	assert.ErrorIs(t, err, ErrInvalidAllocation)

	good := testRecipients(5000, 5000)
	name := "Two-way split"
	require.NoError(t, l.UpdateSchedule(testOwner, schedule.Id, &name, &good))

	schedules, err := l.ListSchedules(testOwner)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "Two-way split", schedules[0].Name)
	require.Len(t, schedules[0].Recipients, 2)
	assert.Equal(t, int64(5000), schedules[0].Recipients[0].ShareBps)
}

func TestRecordExecutionIdempotent(t *testing.T) {
	db := newTestDB(t)
	l := NewPayoutLogic(db)
	schedule := createTestSchedule(t, l)

	executedAt := time.Now().UTC()
	first, err := l.RecordExecution(testOwner, schedule.Id, testTxHash(3), "1000000", executedAt)
	require.NoError(t, err)

	// 同一交易哈希重复登记返回已有记录
	second, err := l.RecordExecution(testOwner, schedule.Id, testTxHash(3), "1000000", executedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)

	executions, err := l.Executions(testOwner, schedule.Id)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestDeleteScheduleCascades(t *testing.T) {
	db := newTestDB(t)
	l := NewPayoutLogic(db)
	schedule := createTestSchedule(t, l)

	_, err := l.RecordExecution(testOwner, schedule.Id, testTxHash(3), "1000000", time.Now().UTC())
	require.NoError(t, err)

	// 非属主不可删除
	assert.ErrorIs(t, l.DeleteSchedule(testSender, schedule.Id), ErrNotFound)

	require.NoError(t, l.DeleteSchedule(testOwner, schedule.Id))

	for _, m := range []interface{}{
		&model.PayoutScheduleModel{},
		&model.PayoutRecipientModel{},
		&model.PayoutExecutionModel{},
	} {
		var count int64
		require.NoError(t, db.Model(m).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	}

	_, err = l.Executions(testOwner, schedule.Id)
	assert.ErrorIs(t, err, ErrNotFound)
}
