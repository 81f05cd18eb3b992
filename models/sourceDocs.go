package models

import (
	"encoding/json"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/utils"
)

// SerialField absorbs the three shapes upstream sends a serial in: a scalar
// string, an array of strings, or one comma-joined string. All forms decode
// to a clean list. A leading comma from upstream concatenation bugs yields an
// empty element, which is dropped.
type SerialField []string

func (f *SerialField) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = SerialField(utils.NormalizeSerials(single))
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*f = SerialField(utils.NormalizeSerials(many...))
	return nil
}

// StatusFlags are the cascading document states. A flip false->true on any of
// them propagates onto the document's flattened line-item mirrors.
type StatusFlags struct {
	Deleted   bool `json:"deleted"`
	Cancelled bool `json:"cancelled"`
	Rejected  bool `json:"rejected"`
	Completed bool `json:"completed"`
}

// DocLineItem is one line entry of a source document. Serial fields are
// optional; a line with none resolves by FIFO on the product code.
type DocLineItem struct {
	ProductCode      string      `json:"productCode"`
	ProductName      string      `json:"productName"`
	Model            string      `json:"model"`
	ProductType      string      `json:"productType"`
	Qty              int         `json:"qty"`
	VehicleNo        SerialField `json:"vehicleNo"`
	VehicleNoFull    SerialField `json:"vehicleNoFull"`
	PeripheralNo     SerialField `json:"peripheralNo"`
	PeripheralNoFull SerialField `json:"peripheralNoFull"`
	Remark           string      `json:"remark"`
}

// ImportDoc covers both importVehicles and importParts. One stock item is
// created per unit of each line's quantity.
type ImportDoc struct {
	Id         string        `json:"id"`
	DocNo      string        `json:"docNo"`
	BatchNo    string        `json:"batchNo"`
	BranchCode string        `json:"branchCode"`
	CreatedBy  string        `json:"createdBy"`
	CreatedAt  *time.Time    `json:"createdAt"`
	DocDate    *time.Time    `json:"docDate"`
	Items      []DocLineItem `json:"items"`
	StatusFlags
}

// ImportLogDoc is the batch-completion marker written after an import run.
// Its creation schedules the delayed keyword recheck.
type ImportLogDoc struct {
	Id        string     `json:"id"`
	DataType  string     `json:"dataType"` // importVehicles | importParts
	BatchNo   string     `json:"batchNo"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt *time.Time `json:"createdAt"`
}

type BookingDoc struct {
	Id           string        `json:"id"`
	DocNo        string        `json:"docNo"`
	BranchCode   string        `json:"branchCode"`
	CustomerName string        `json:"customerName"`
	CreatedBy    string        `json:"createdBy"`
	CreatedAt    *time.Time    `json:"createdAt"`
	DocDate      *time.Time    `json:"docDate"`
	Items        []DocLineItem `json:"items"`
	StatusFlags
}

type TransferDoc struct {
	Id         string        `json:"id"`
	DocNo      string        `json:"docNo"`
	FromBranch string        `json:"fromBranch"`
	ToBranch   string        `json:"toBranch"`
	CreatedBy  string        `json:"createdBy"`
	CreatedAt  *time.Time    `json:"createdAt"`
	DocDate    *time.Time    `json:"docDate"`
	Items      []DocLineItem `json:"items"`
	StatusFlags
}

type SaleOutDoc struct {
	Id           string        `json:"id"`
	DocNo        string        `json:"docNo"`
	BranchCode   string        `json:"branchCode"`
	CustomerName string        `json:"customerName"`
	CreatedBy    string        `json:"createdBy"`
	CreatedAt    *time.Time    `json:"createdAt"`
	DocDate      *time.Time    `json:"docDate"`
	Items        []DocLineItem `json:"items"`
	StatusFlags
}

// OtherVehicleOutDoc moves a unit out of the dealership for reasons other
// than a sale (auction, insurer return). Sets the exported axis.
type OtherVehicleOutDoc struct {
	Id         string        `json:"id"`
	DocNo      string        `json:"docNo"`
	BranchCode string        `json:"branchCode"`
	Reason     string        `json:"reason"`
	CreatedBy  string        `json:"createdBy"`
	CreatedAt  *time.Time    `json:"createdAt"`
	DocDate    *time.Time    `json:"docDate"`
	Items      []DocLineItem `json:"items"`
	StatusFlags
}

// OtherVehicleInDoc brings a unit in outside the regular import pipeline
// (trade-in, inter-company return). Creates stock items like an import.
type OtherVehicleInDoc struct {
	Id         string        `json:"id"`
	DocNo      string        `json:"docNo"`
	BranchCode string        `json:"branchCode"`
	Reason     string        `json:"reason"`
	CreatedBy  string        `json:"createdBy"`
	CreatedAt  *time.Time    `json:"createdAt"`
	DocDate    *time.Time    `json:"docDate"`
	Items      []DocLineItem `json:"items"`
	StatusFlags
}

type DecalDoc struct {
	Id         string        `json:"id"`
	DocNo      string        `json:"docNo"`
	BranchCode string        `json:"branchCode"`
	IsTakeOut  bool          `json:"isTakeOut"`
	CreatedBy  string        `json:"createdBy"`
	CreatedAt  *time.Time    `json:"createdAt"`
	DocDate    *time.Time    `json:"docDate"`
	Items      []DocLineItem `json:"items"`
	StatusFlags
}

type DeliverDoc struct {
	Id           string        `json:"id"`
	DocNo        string        `json:"docNo"`
	BranchCode   string        `json:"branchCode"`
	CustomerName string        `json:"customerName"`
	CreatedBy    string        `json:"createdBy"`
	CreatedAt    *time.Time    `json:"createdAt"`
	DocDate      *time.Time    `json:"docDate"`
	Items        []DocLineItem `json:"items"`
	StatusFlags
}

// LeaveDoc is the HR leave request. It carries no stock effect; its handler
// only notifies the approver chain.
type LeaveDoc struct {
	Id           string     `json:"id"`
	DocNo        string     `json:"docNo"`
	BranchCode   string     `json:"branchCode"`
	Province     string     `json:"province"`
	EmployeeName string     `json:"employeeName"`
	LeaveType    string     `json:"leaveType"`
	FromDate     *time.Time `json:"fromDate"`
	ToDate       *time.Time `json:"toDate"`
	Status       string     `json:"status"` // pending | approved | rejected
	CreatedBy    string     `json:"createdBy"`
	CreatedAt    *time.Time `json:"createdAt"`
}

// RecheckRequest is the payload of an internally scheduled keyword recheck.
type RecheckRequest struct {
	DataType string `json:"dataType"`
	BatchNo  string `json:"batchNo"`
}
