package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-sms-parser/internal/domain"
)

func fixedClock(year int) func() time.Time {
	return func() time.Time {
		return time.Date(year, time.March, 1, 9, 0, 0, 0, time.UTC)
	}
}

func dateTime(year, month, day, hour, minute int) civil.DateTime {
	return civil.DateTime{
		Date: civil.Date{Year: year, Month: time.Month(month), Day: day},
		Time: civil.Time{Hour: hour, Minute: minute},
	}
}

func TestRuleExtractors_Extract(t *testing.T) {
	const year = 2025

	tests := []struct {
		name      string
		extractor *RuleExtractor
		text      string
		want      domain.ExpenditureRecord
	}{
		{
			name:      "KB approval",
			extractor: NewKBExtractor(WithClock(fixedClock(year))),
			text:      "[KB국민카드] 06/12 10:20 승인 11,000원 스타벅스",
			want: domain.ExpenditureRecord{
				Vendor: domain.VendorKB, OccurredAt: dateTime(year, 6, 12, 10, 20), Amount: 11000, MerchantName: "스타벅스",
			},
		},
		{
			name:      "KB multi-line body",
			extractor: NewKBExtractor(WithClock(fixedClock(year))),
			text:      "[Web발신]\n[KB국민카드]\n01/05 23:59\n승인 1,250,000원\n이마트 성수점\n",
			want: domain.ExpenditureRecord{
				Vendor: domain.VendorKB, OccurredAt: dateTime(year, 1, 5, 23, 59), Amount: 1250000, MerchantName: "이마트 성수점",
			},
		},
		{
			name:      "KB keeps trailing text after the merchant",
			extractor: NewKBExtractor(WithClock(fixedClock(year))),
			text:      "[KB국민카드] 06/12 10:20 승인 11,000원 스타벅스 누적 50,000원",
			want: domain.ExpenditureRecord{
				Vendor: domain.VendorKB, OccurredAt: dateTime(year, 6, 12, 10, 20), Amount: 11000, MerchantName: "스타벅스 누적 50,000원",
			},
		},
		{
			name:      "NH approval with running total",
			extractor: NewNHExtractor(WithClock(fixedClock(year))),
			text:      "NH농협카드5*5승인 가나다 5,700원 일시불 10/21 08:33 (주)티머니 개인택 총누적1,000,000원",
			want: domain.ExpenditureRecord{
				Vendor: domain.VendorNH, OccurredAt: dateTime(year, 10, 21, 8, 33), Amount: 5700, MerchantName: "(주)티머니 개인택",
			},
		},
		{
			name:      "NH approval without installment token",
			extractor: NewNHExtractor(WithClock(fixedClock(year))),
			text:      "NH농협카드1*2승인 홍*동 900원 03/02 07:15 GS25 역삼점",
			want: domain.ExpenditureRecord{
				Vendor: domain.VendorNH, OccurredAt: dateTime(year, 3, 2, 7, 15), Amount: 900, MerchantName: "GS25 역삼점",
			},
		},
		{
			name:      "SH approval",
			extractor: NewSHExtractor(WithClock(fixedClock(year))),
			text:      "신한카드(6193)승인 가나다 5,700원(일시불)10/21 08:33 (주)티머니 개인택 누적1,000,000원",
			want: domain.ExpenditureRecord{
				Vendor: domain.VendorSH, OccurredAt: dateTime(year, 10, 21, 8, 33), Amount: 5700, MerchantName: "(주)티머니 개인택",
			},
		},
		{
			name:      "SH approval with balance annotation",
			extractor: NewSHExtractor(WithClock(fixedClock(year))),
			text:      "신한카드(1234)승인 김*수 32,000원(일시불)12/31 21:05 교보문고 잔여한도 3,000,000원",
			want: domain.ExpenditureRecord{
				Vendor: domain.VendorSH, OccurredAt: dateTime(year, 12, 31, 21, 5), Amount: 32000, MerchantName: "교보문고",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.extractor.MatchesVendor(tt.text) {
				t.Fatalf("MatchesVendor(%q) = false, want true", tt.text)
			}
			got, err := tt.extractor.Extract(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if *got != tt.want {
				t.Errorf("Extract() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestRuleExtractors_YearIsCurrentYear(t *testing.T) {
	thisYear := time.Now().Year()

	got, err := NewKBExtractor().Extract(context.Background(), "[KB국민카드] 06/12 10:20 승인 11,000원 스타벅스")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.OccurredAt.Date.Year != thisYear {
		t.Errorf("year = %d, want %d", got.OccurredAt.Date.Year, thisYear)
	}
}

func TestRuleExtractors_ExtractErrors(t *testing.T) {
	clock := WithClock(fixedClock(2025))

	tests := []struct {
		name      string
		extractor *RuleExtractor
		text      string
		wantEmpty bool
	}{
		{name: "empty text", extractor: NewKBExtractor(clock), text: "", wantEmpty: true},
		{name: "whitespace text", extractor: NewNHExtractor(clock), text: "  \n ", wantEmpty: true},
		{name: "KB keyword without body", extractor: NewKBExtractor(clock), text: "[KB국민카드] 결제가 취소되었습니다"},
		{name: "NH missing time", extractor: NewNHExtractor(clock), text: "NH농협카드5*5승인 가나다 5,700원 일시불 10/21 (주)티머니"},
		{name: "SH missing amount", extractor: NewSHExtractor(clock), text: "신한카드(6193)승인 가나다 (일시불)10/21 08:33 스타벅스"},
		{name: "impossible date", extractor: NewKBExtractor(clock), text: "[KB국민카드] 02/30 10:20 승인 11,000원 스타벅스"},
		{name: "impossible time", extractor: NewKBExtractor(clock), text: "[KB국민카드] 02/03 25:20 승인 11,000원 스타벅스"},
		{name: "zero amount", extractor: NewSHExtractor(clock), text: "신한카드(6193)승인 가나다 0원(일시불)10/21 08:33 스타벅스"},
		{name: "amount overflow", extractor: NewKBExtractor(clock), text: "[KB국민카드] 06/12 10:20 승인 99,999,999,999,999,999,999원 스타벅스"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.extractor.Extract(context.Background(), tt.text)
			if err == nil {
				t.Fatalf("Extract() = %+v, want error", got)
			}
			if tt.wantEmpty {
				if !errors.Is(err, ErrEmptyInput) {
					t.Errorf("Extract() error = %v, want ErrEmptyInput", err)
				}
				return
			}
			var ee *ExtractionError
			if !errors.As(err, &ee) {
				t.Fatalf("Extract() error = %T %v, want *ExtractionError", err, err)
			}
			if ee.Vendor != tt.extractor.Vendor() {
				t.Errorf("ExtractionError.Vendor = %q, want %q", ee.Vendor, tt.extractor.Vendor())
			}
		})
	}
}

func TestRuleExtractors_LeapDay(t *testing.T) {
	text := "[KB국민카드] 02/29 12:00 승인 5,000원 편의점"

	if _, err := NewKBExtractor(WithClock(fixedClock(2024))).Extract(context.Background(), text); err != nil {
		t.Errorf("leap year: unexpected error %v", err)
	}
	if _, err := NewKBExtractor(WithClock(fixedClock(2025))).Extract(context.Background(), text); !IsExtractionError(err) {
		t.Errorf("non-leap year: error = %v, want *ExtractionError", err)
	}
}

func TestRuleExtractors_MatchesVendor(t *testing.T) {
	kb, nh, sh := NewKBExtractor(), NewNHExtractor(), NewSHExtractor()

	tests := []struct {
		text           string
		kbWant, nhWant bool
		shWant         bool
	}{
		{text: "", kbWant: false, nhWant: false, shWant: false},
		{text: "[KB국민카드] 06/12 10:20 승인 11,000원 스타벅스", kbWant: true},
		{text: "국민카드 승인", kbWant: true},
		{text: "NH농협카드5*5승인", nhWant: true},
		{text: "농협카드 승인 안내", nhWant: true},
		{text: "신한카드(6193)승인", shWant: true},
		{text: "알 수 없는 카드사 메시지"},
		{text: "KB증권 입금 안내"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := kb.MatchesVendor(tt.text); got != tt.kbWant {
				t.Errorf("KB.MatchesVendor = %v, want %v", got, tt.kbWant)
			}
			if got := nh.MatchesVendor(tt.text); got != tt.nhWant {
				t.Errorf("NH.MatchesVendor = %v, want %v", got, tt.nhWant)
			}
			if got := sh.MatchesVendor(tt.text); got != tt.shWant {
				t.Errorf("SH.MatchesVendor = %v, want %v", got, tt.shWant)
			}
		})
	}
}

func TestDefaultExtractors_Order(t *testing.T) {
	want := []string{domain.VendorKB, domain.VendorNH, domain.VendorSH}

	got := DefaultExtractors()
	if len(got) != len(want) {
		t.Fatalf("DefaultExtractors() returned %d extractors, want %d", len(got), len(want))
	}
	for i, ex := range got {
		if ex.Vendor() != want[i] {
			t.Errorf("extractor %d vendor = %q, want %q", i, ex.Vendor(), want[i])
		}
	}
}
