package assets

import (
	"errors"
	"time"
)

// AssetType separates office IT equipment from equipment installed in fleet units.
type AssetType string

const (
	AssetTypeIT        AssetType = "it"
	AssetTypeOperation AssetType = "operation"
)

// Valid reports whether the asset type is known.
func (t AssetType) Valid() bool {
	return t == AssetTypeIT || t == AssetTypeOperation
}

// State is the lifecycle state of an asset.
type State string

const (
	StateAvailable State = "available"
	StateInUse     State = "in_use"
	StateRepair    State = "repair"
	StateRetired   State = "retired"
)

// States lists asset states in display order.
var States = []State{StateAvailable, StateInUse, StateRepair, StateRetired}

// Condition is the physical condition of an asset, set to broken when a damage
// report is confirmed.
type Condition string

const (
	ConditionGood   Condition = "good"
	ConditionBroken Condition = "broken"
)

// PrinterPeriod selects the window used for printer usage figures.
type PrinterPeriod string

const (
	PeriodMonth   PrinterPeriod = "month"
	PeriodQuarter PrinterPeriod = "quarter"
	PeriodYear    PrinterPeriod = "year"
)

// Valid reports whether the period is known.
func (p PrinterPeriod) Valid() bool {
	switch p {
	case PeriodMonth, PeriodQuarter, PeriodYear:
		return true
	}
	return false
}

// RadioMode selects how radios are grouped.
type RadioMode string

const (
	// RadioModeUnit groups radios installed in fleet units by fleet category.
	RadioModeUnit RadioMode = "unit"
	// RadioModeStock groups radios not installed in a unit by state.
	RadioModeStock RadioMode = "stock"
)

// Valid reports whether the mode is known.
func (m RadioMode) Valid() bool {
	return m == RadioModeUnit || m == RadioModeStock
}

// CategoryKind names the entity kinds the category query can list.
type CategoryKind string

const (
	KindAssetCategory CategoryKind = "asset_category"
	KindFleetCategory CategoryKind = "fleet_category"
)

// Entity names used by list views.
const (
	EntityAsset       = "it_asset.asset"
	EntityMaintenance = "it_asset.maintenance"
)

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("assets: not found")
	// ErrInvalidFilter indicates a malformed stats filter mapping.
	ErrInvalidFilter = errors.New("assets: invalid filter")
	// ErrCounterDecreased rejects a printer reading below the previous counter.
	ErrCounterDecreased = errors.New("assets: counter value cannot be less than the previous reading")
	// ErrUnknownKind rejects an unsupported category kind.
	ErrUnknownKind = errors.New("assets: unknown category kind")
	// ErrInvalidReading rejects a malformed printer reading.
	ErrInvalidReading = errors.New("assets: invalid printer reading")
	// ErrInvalidAsset rejects malformed asset, assignment or swap input.
	ErrInvalidAsset = errors.New("assets: invalid asset input")
	// ErrAssetTagRequired rejects a non-consumable asset without a tag.
	ErrAssetTagRequired = errors.New("assets: asset tag is required for non-consumable assets")
	// ErrConsumableAssignment rejects assigning a consumable to an employee.
	ErrConsumableAssignment = errors.New("assets: consumable items cannot be assigned to employees")
	// ErrAlreadyReturned rejects returning a closed assignment or swap twice.
	ErrAlreadyReturned = errors.New("assets: already returned")
)

// CategoryRef identifies a category for facet pickers.
type CategoryRef struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	IsConsumable bool   `json:"is_consumable"`
}

// Asset is a row of the asset list view.
type Asset struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Model        string    `json:"model,omitempty"`
	AssetTag     string    `json:"asset_tag,omitempty"`
	CategoryID   *int64    `json:"category_id,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	AssetType    AssetType `json:"asset_type"`
	State        State     `json:"state"`
	Condition    Condition `json:"condition"`
	IsConsumable bool      `json:"is_consumable"`
	Employee     string    `json:"employee,omitempty"`
	UnitID       *int64    `json:"unit_id,omitempty"`
	UnitName     string    `json:"unit_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// StateForEmployee is the state an asset takes when its employee changes.
// Assets in repair or retired keep their state; otherwise an employee puts the
// asset in use and clearing it makes the asset available again.
func StateForEmployee(current State, employee string) State {
	return stateForHolder(current, employee != "")
}

func stateForHolder(current State, held bool) State {
	switch {
	case current == StateRepair || current == StateRetired:
		return current
	case held:
		return StateInUse
	default:
		return StateAvailable
	}
}

// MaintenanceLog is a row of the maintenance history view.
type MaintenanceLog struct {
	ID          int64     `json:"id"`
	AssetID     int64     `json:"asset_id"`
	AssetName   string    `json:"asset_name"`
	AssetType   AssetType `json:"asset_type"`
	Date        time.Time `json:"maintenance_date"`
	Type        string    `json:"maintenance_type"`
	Description string    `json:"description"`
	Cost        float64   `json:"cost"`
	Technician  string    `json:"technician,omitempty"`
}

// PrinterReading is one meter reading of a printer.
type PrinterReading struct {
	ID         int64     `json:"id"`
	AssetID    int64     `json:"asset_id"`
	Date       time.Time `json:"date"`
	ColorPages int64     `json:"color_pages"`
	BWPages    int64     `json:"bw_pages"`
	TotalPages int64     `json:"total_pages"`
	PagesDiff  int64     `json:"pages_diff"`
	BWDiff     int64     `json:"bw_diff"`
	ColorDiff  int64     `json:"color_diff"`
	Remarks    string    `json:"remarks,omitempty"`
}

// ReadingInput carries a new printer meter reading.
type ReadingInput struct {
	AssetID    int64     `json:"asset_id" validate:"required,gt=0"`
	Date       time.Time `json:"date" validate:"required"`
	ColorPages int64     `json:"color_pages" validate:"gte=0"`
	BWPages    int64     `json:"bw_pages" validate:"gte=0"`
	Remarks    string    `json:"remarks" validate:"max=255"`
}

// AssetInput carries a new asset.
type AssetInput struct {
	Name       string    `json:"name" validate:"required,max=255"`
	Model      string    `json:"model" validate:"max=255"`
	AssetTag   string    `json:"asset_tag" validate:"max=64"`
	CategoryID *int64    `json:"category_id" validate:"omitempty,gt=0"`
	AssetType  AssetType `json:"asset_type" validate:"omitempty,oneof=it operation"`
	Employee   string    `json:"employee" validate:"max=128"`
}

// LoanState tracks whether an assignment or swap is still open.
type LoanState string

const (
	LoanActive   LoanState = "active"
	LoanReturned LoanState = "returned"
)

// Assignment is one entry of an asset's employee assignment history.
type Assignment struct {
	ID         int64      `json:"id"`
	AssetID    int64      `json:"asset_id"`
	AssetName  string     `json:"asset_name,omitempty"`
	Employee   string     `json:"employee"`
	AssignedOn time.Time  `json:"assigned_on"`
	ReturnedOn *time.Time `json:"returned_on,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	State      LoanState  `json:"state"`
}

// Releases reports whether returning a closes the current holding of asset.
func (a Assignment) Releases(asset Asset) bool {
	return asset.Employee != "" && asset.Employee == a.Employee
}

// AssignmentInput hands an asset to an employee. A zero Date means today.
type AssignmentInput struct {
	AssetID  int64     `json:"asset_id" validate:"required,gt=0"`
	Employee string    `json:"employee" validate:"required,max=128"`
	Date     time.Time `json:"date"`
	Notes    string    `json:"notes" validate:"max=1000"`
}

// Swap is one entry of an asset's fleet unit installation history.
type Swap struct {
	ID         int64      `json:"id"`
	AssetID    int64      `json:"asset_id"`
	AssetName  string     `json:"asset_name,omitempty"`
	UnitID     int64      `json:"unit_id"`
	UnitName   string     `json:"unit_name,omitempty"`
	SwappedOn  time.Time  `json:"swapped_on"`
	ReturnedOn *time.Time `json:"returned_on,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	State      LoanState  `json:"state"`
}

// Releases reports whether returning s takes asset out of its unit.
func (s Swap) Releases(asset Asset) bool {
	return asset.UnitID != nil && *asset.UnitID == s.UnitID
}

// SwapInput installs an asset in a fleet unit. A zero Date means today.
type SwapInput struct {
	AssetID int64     `json:"asset_id" validate:"required,gt=0"`
	UnitID  int64     `json:"unit_id" validate:"required,gt=0"`
	Date    time.Time `json:"date"`
	Notes   string    `json:"notes" validate:"max=1000"`
}

// ActivityRecord is a stored entry of the activity feed.
type ActivityRecord struct {
	ID         int64
	Type       string
	Title      string
	Actor      string
	Status     string
	OccurredAt time.Time
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
