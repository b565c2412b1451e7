package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kalutskii/etil-sterahstib/pkg/bitshares"
)

// HistoryRecord is one stored operation history entry of an account.
type HistoryRecord struct {
	ID          uint           `gorm:"primaryKey"`
	Account     string         `gorm:"column:account;type:varchar(64);not null;uniqueIndex:idx_operation_history_account_op;index:idx_operation_history_account_sequence"`
	OperationID string         `gorm:"column:operation_id;type:varchar(32);not null;uniqueIndex:idx_operation_history_account_op"`
	Sequence    uint64         `gorm:"column:sequence;not null;index:idx_operation_history_account_sequence"`
	OpType      int            `gorm:"column:op_type;not null"`
	BlockNum    uint32         `gorm:"column:block_num;not null"`
	BlockTime   *time.Time     `gorm:"column:block_time"`
	Op          datatypes.JSON `gorm:"column:op;not null"`
	Result      datatypes.JSON `gorm:"column:result"`
	CreatedAt   time.Time
}

func (HistoryRecord) TableName() string {
	return "operation_history"
}

// Operation rebuilds the entry as the node returned it.
func (r HistoryRecord) Operation() (bitshares.OperationHistoryObject, error) {
	entry := bitshares.OperationHistoryObject{
		ID:       r.OperationID,
		BlockNum: r.BlockNum,
	}
	if err := json.Unmarshal(r.Op, &entry.Op); err != nil {
		return bitshares.OperationHistoryObject{}, fmt.Errorf("stored operation %s: %w", r.OperationID, err)
	}
	if len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, &entry.Result); err != nil {
			return bitshares.OperationHistoryObject{}, fmt.Errorf("stored operation result %s: %w", r.OperationID, err)
		}
	}
	if r.BlockTime != nil {
		entry.BlockTime = &bitshares.TimePointSec{Time: r.BlockTime.UTC()}
	}
	return entry, nil
}

// HistoryFilter narrows a listing.
type HistoryFilter struct {
	// OpType keeps only operations of this type when set.
	OpType *int
}

// HistoryStore persists account operation history.
type HistoryStore struct {
	db *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Save stores entries for account and returns how many were new. Entries
// already stored for the account are left untouched.
func (s *HistoryStore) Save(ctx context.Context, account string, entries []bitshares.OperationHistoryObject) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	records := make([]HistoryRecord, 0, len(entries))
	for _, entry := range entries {
		record, err := newHistoryRecord(account, entry)
		if err != nil {
			return 0, err
		}
		records = append(records, record)
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account"}, {Name: "operation_id"}},
			DoNothing: true,
		}).
		Create(&records)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to store history of %s: %w", account, res.Error)
	}
	return int(res.RowsAffected), nil
}

// List returns stored entries of account, newest first unless options say
// otherwise.
func (s *HistoryStore) List(ctx context.Context, account string, filter HistoryFilter, options *ListOptions) ([]HistoryRecord, error) {
	query := applyListOptions(s.db.WithContext(ctx), "sequence", SortTypeDescending, options)
	query = query.Where("account = ?", account)
	if filter.OpType != nil {
		query = query.Where("op_type = ?", *filter.OpType)
	}

	var records []HistoryRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Latest returns the newest stored entry of account, or nil.
func (s *HistoryStore) Latest(ctx context.Context, account string) (*HistoryRecord, error) {
	var record HistoryRecord
	err := s.db.WithContext(ctx).
		Where("account = ?", account).
		Order("sequence DESC").
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

// Count returns the number of stored entries of account.
func (s *HistoryStore) Count(ctx context.Context, account string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&HistoryRecord{}).Where("account = ?", account).Count(&count).Error
	return count, err
}

func newHistoryRecord(account string, entry bitshares.OperationHistoryObject) (HistoryRecord, error) {
	sequence, err := objectInstance(entry.ID)
	if err != nil {
		return HistoryRecord{}, err
	}

	op, err := json.Marshal(entry.Op)
	if err != nil {
		return HistoryRecord{}, fmt.Errorf("failed to encode operation %s: %w", entry.ID, err)
	}
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return HistoryRecord{}, fmt.Errorf("failed to encode operation result %s: %w", entry.ID, err)
	}

	record := HistoryRecord{
		Account:     account,
		OperationID: entry.ID,
		Sequence:    sequence,
		OpType:      entry.Op.Type,
		BlockNum:    entry.BlockNum,
		Op:          datatypes.JSON(op),
		Result:      datatypes.JSON(result),
	}
	if entry.BlockTime != nil {
		t := entry.BlockTime.UTC()
		record.BlockTime = &t
	}
	return record, nil
}

// objectInstance returns the instance part of a "space.type.instance" id.
func objectInstance(id string) (uint64, error) {
	if !bitshares.IsObjectID(id) {
		return 0, fmt.Errorf("invalid object id %q", id)
	}
	return strconv.ParseUint(id[strings.LastIndexByte(id, '.')+1:], 10, 64)
}
