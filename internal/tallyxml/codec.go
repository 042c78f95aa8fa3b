// Package tallyxml serializes voucher sequences into the Tally import XML
// format. Tag and attribute names are a wire contract with the Tally import
// consumer and must not be altered.
package tallyxml

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/anayak/bank2tally/internal/voucher"
)

type envelope struct {
	XMLName xml.Name `xml:"ENVELOPE"`
	Header  header   `xml:"HEADER"`
	Body    body     `xml:"BODY"`
}

type header struct {
	TallyRequest string `xml:"TALLYREQUEST"`
}

type body struct {
	ImportData importData `xml:"IMPORTDATA"`
}

type importData struct {
	RequestDesc requestDesc `xml:"REQUESTDESC"`
	RequestData requestData `xml:"REQUESTDATA"`
}

type requestDesc struct {
	ReportName string `xml:"REPORTNAME"`
}

type requestData struct {
	Messages []tallyMessage `xml:"TALLYMESSAGE"`
}

type tallyMessage struct {
	Voucher voucherElem `xml:"VOUCHER"`
}

type voucherElem struct {
	VchType         string      `xml:"VCHTYPE,attr"`
	Action          string      `xml:"ACTION,attr"`
	Date            string      `xml:"DATE"`
	VoucherTypeName string      `xml:"VOUCHERTYPENAME"`
	Narration       string      `xml:"NARRATION"`
	PartyLedgerName string      `xml:"PARTYLEDGERNAME"`
	Entries         []entryElem `xml:"ALLLEDGERENTRIES.LIST"`
}

type entryElem struct {
	LedgerName       string `xml:"LEDGERNAME"`
	IsDeemedPositive string `xml:"ISDEEMEDPOSITIVE"`
	Amount           string `xml:"AMOUNT"`
}

// Encode serializes vouchers in input order into a pretty-printed Tally
// import document: 4-space indentation, one element per line, XML
// declaration first.
func Encode(vouchers []voucher.Voucher) (string, error) {
	env := envelope{
		Header: header{TallyRequest: "Import Data"},
		Body: body{
			ImportData: importData{
				RequestDesc: requestDesc{ReportName: "Vouchers"},
				RequestData: requestData{Messages: make([]tallyMessage, 0, len(vouchers))},
			},
		},
	}

	for i, v := range vouchers {
		if !v.Balanced() {
			return "", fmt.Errorf("voucher %d (%q) is not balanced", i, v.Narration)
		}
		env.Body.ImportData.RequestData.Messages = append(
			env.Body.ImportData.RequestData.Messages,
			tallyMessage{Voucher: voucherToElem(v)},
		)
	}

	out, err := xml.MarshalIndent(env, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	return xml.Header + string(out) + "\n", nil
}

func voucherToElem(v voucher.Voucher) voucherElem {
	elem := voucherElem{
		VchType:         string(v.Kind),
		Action:          "Create",
		Date:            compactDate(v.Date),
		VoucherTypeName: string(v.Kind),
		Narration:       v.Narration,
		PartyLedgerName: v.PartyLedger,
		Entries:         make([]entryElem, 0, len(v.Entries)),
	}
	for _, e := range v.Entries {
		elem.Entries = append(elem.Entries, entryElem{
			LedgerName:       e.LedgerName,
			IsDeemedPositive: yesNo(e.IsDeemedPositive),
			Amount:           e.AmountText(),
		})
	}
	return elem
}

// compactDate strips separators from a YYYY-MM-DD date: Tally wants
// "20240115", not "2024-01-15".
func compactDate(date string) string {
	return strings.ReplaceAll(date, "-", "")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
