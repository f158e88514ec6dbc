package indexer

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

func TestInsertInputIsIdempotentOnConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT INTO inputs .*ON CONFLICT \(index\) DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO inputs .*ON CONFLICT \(index\) DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewStore(db)
	input := rollupstypes.RollupsInput{
		Data: rollupstypes.NewAdvanceStateInput(rollupstypes.RollupsAdvanceStateInput{
			Metadata: rollupstypes.InputMetadata{
				MsgSender:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
				BlockNumber: 10,
				Timestamp:   1000,
				EpochIndex:  0,
				InputIndex:  5,
			},
			Payload: []byte("hello"),
		}),
	}

	if err := store.InsertInput(context.Background(), input); err != nil {
		t.Fatalf("insert input: %v", err)
	}
	if err := store.InsertInput(context.Background(), input); err != nil {
		t.Fatalf("re-insert of an already indexed input: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertInputRejectsFinishEpoch(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	store := NewStore(db)
	err = store.InsertInput(context.Background(), rollupstypes.RollupsInput{Data: rollupstypes.NewFinishEpoch()})
	if err == nil {
		t.Fatalf("expected error inserting a FinishEpoch entry as an input row")
	}
}

func TestInsertOutputDispatchesByKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO vouchers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notices").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reports").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO proofs").WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(db)
	ctx := context.Background()

	outputs := []rollupstypes.RollupsOutput{
		rollupstypes.NewVoucher(rollupstypes.RollupsVoucher{
			Index: 0, InputIndex: 5,
			Destination: common.HexToAddress("0x2222222222222222222222222222222222222222"),
			Payload:     []byte("voucher"),
		}),
		rollupstypes.NewNotice(rollupstypes.RollupsNotice{Index: 0, InputIndex: 5, Payload: []byte("notice")}),
		rollupstypes.NewReport(rollupstypes.RollupsReport{Index: 0, InputIndex: 5, Payload: []byte("report")}),
		rollupstypes.NewProof(rollupstypes.RollupsProof{
			InputIndex: 5, OutputIndex: 0, OutputEnum: rollupstypes.OutputEnumVoucher,
		}),
	}

	for _, o := range outputs {
		if err := store.InsertOutput(ctx, o); err != nil {
			t.Fatalf("insert output kind %q: %v", o.Kind, err)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
