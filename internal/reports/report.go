package reports

import (
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/apperr"
	"github.com/alfares/bakery-backend/pkg/database"
)

type Request struct {
	ReportType string `json:"reportType" form:"reportType" binding:"required"`
	StartDate  string `json:"startDate" form:"startDate" binding:"required"`
	EndDate    string `json:"endDate" form:"endDate" binding:"required"`
	Branch     string `json:"branch" form:"branch"`
	ItemCode   string `json:"itemCode" form:"itemCode"`
	ItemType   string `json:"itemType" form:"itemType"` // Normal, Grocery, Machine
	GroupBy    string `json:"groupBy" form:"groupBy"`   // item, branch, type, or empty for detail rows
}

// Report is a tabular result shared by the JSON endpoint and the
// xlsx export: one header row plus data rows, with summed totals.
type Report struct {
	ReportType string                 `json:"report_type"`
	StartDate  string                 `json:"start_date"`
	EndDate    string                 `json:"end_date"`
	Headers    []string               `json:"headers"`
	Rows       [][]interface{}        `json:"rows"`
	Summary    map[string]interface{} `json:"summary"`
}

// BuildReport runs the read-side aggregation for one report type.
// It never mutates any ledger.
func BuildReport(db *gorm.DB, req Request) (*Report, error) {
	if !database.ValidDate(req.StartDate) || !database.ValidDate(req.EndDate) {
		return nil, apperr.Validation("startDate and endDate must be in YYYY-MM-DD format")
	}
	if req.StartDate > req.EndDate {
		return nil, apperr.Validation("startDate must not be after endDate")
	}
	switch req.GroupBy {
	case "", "item", "branch", "type":
	default:
		return nil, apperr.Validation("groupBy must be item, branch or type")
	}
	switch req.ItemType {
	case "", database.ItemTypeNormal, database.ItemTypeGrocery, database.ItemTypeMachine:
	default:
		return nil, apperr.Validation("itemType must be Normal, Grocery or Machine")
	}

	switch req.ReportType {
	case "stock":
		return stockReport(db, req)
	case "grocery":
		return groceryReport(db, req)
	case "machine":
		return machineReport(db, req)
	case "cash":
		return cashReport(db, req)
	case "transfers":
		return transfersReport(db, req)
	}
	return nil, apperr.Validation("reportType must be stock, grocery, machine, cash or transfers")
}

func stockReport(db *gorm.DB, req Request) (*Report, error) {
	query := db.Where("date BETWEEN ? AND ?", req.StartDate, req.EndDate)
	if req.Branch != "" {
		query = query.Where("branch = ?", req.Branch)
	}
	if req.ItemCode != "" {
		query = query.Where("item_code = ?", req.ItemCode)
	}

	var entries []database.StockEntry
	if err := query.Order("date ASC, branch ASC, item_code ASC").Find(&entries).Error; err != nil {
		return nil, err
	}

	items, err := itemIndex(db, func(e database.StockEntry) string { return e.ItemCode }, entries)
	if err != nil {
		return nil, err
	}
	if req.ItemType != "" {
		entries = filterByItemType(entries, items, req.ItemType, func(e database.StockEntry) string { return e.ItemCode })
	}

	report := newReport("stock", req)
	var totalSold, totalRevenue float64

	if req.GroupBy != "" {
		report.Headers = []string{groupHeader(req.GroupBy), "Added", "Returned", "Transferred", "Sold", "Revenue"}
		groups := newGrouper()
		for _, e := range entries {
			price := items[e.ItemCode].Price
			groups.add(groupKey(req.GroupBy, items, e.ItemCode, e.Branch), e.Added, e.Returned, e.Transferred, e.Sold, e.Sold*price)
			totalSold += e.Sold
			totalRevenue += e.Sold * price
		}
		report.Rows = groups.rows()
	} else {
		report.Headers = []string{"Date", "Branch", "Item Code", "Item Name", "Added", "Returned", "Transferred", "Sold", "Available", "Revenue"}
		for _, e := range entries {
			price := items[e.ItemCode].Price
			revenue := e.Sold * price
			report.Rows = append(report.Rows, []interface{}{
				e.Date, e.Branch, e.ItemCode, itemLabel(items, e.ItemCode),
				e.Added, e.Returned, e.Transferred, e.Sold, e.Available(), revenue,
			})
			totalSold += e.Sold
			totalRevenue += revenue
		}
	}

	report.Summary = map[string]interface{}{
		"rows":          len(report.Rows),
		"total_sold":    totalSold,
		"total_revenue": totalRevenue,
	}
	return report, nil
}

func groceryReport(db *gorm.DB, req Request) (*Report, error) {
	query := db.Where("date BETWEEN ? AND ?", req.StartDate, req.EndDate)
	if req.Branch != "" {
		query = query.Where("branch = ?", req.Branch)
	}
	if req.ItemCode != "" {
		query = query.Where("item_code = ?", req.ItemCode)
	}

	var sales []database.GrocerySale
	if err := query.Order("date ASC, branch ASC").Find(&sales).Error; err != nil {
		return nil, err
	}

	items, err := itemIndex(db, func(s database.GrocerySale) string { return s.ItemCode }, sales)
	if err != nil {
		return nil, err
	}
	if req.ItemType != "" {
		sales = filterByItemType(sales, items, req.ItemType, func(s database.GrocerySale) string { return s.ItemCode })
	}

	report := newReport("grocery", req)
	var totalQty, totalCash float64

	if req.GroupBy != "" {
		report.Headers = []string{groupHeader(req.GroupBy), "Quantity", "Total Cash"}
		groups := newGrouper()
		for _, s := range sales {
			groups.add(groupKey(req.GroupBy, items, s.ItemCode, s.Branch), s.Quantity, s.TotalCash)
			totalQty += s.Quantity
			totalCash += s.TotalCash
		}
		report.Rows = groups.rows()
	} else {
		report.Headers = []string{"Date", "Branch", "Item Code", "Item Name", "Quantity", "Total Cash"}
		for _, s := range sales {
			report.Rows = append(report.Rows, []interface{}{
				s.Date, s.Branch, s.ItemCode, itemLabel(items, s.ItemCode), s.Quantity, s.TotalCash,
			})
			totalQty += s.Quantity
			totalCash += s.TotalCash
		}
	}

	report.Summary = map[string]interface{}{
		"rows":           len(report.Rows),
		"total_quantity": totalQty,
		"total_cash":     totalCash,
	}
	return report, nil
}

func machineReport(db *gorm.DB, req Request) (*Report, error) {
	query := db.Where("date BETWEEN ? AND ?", req.StartDate, req.EndDate)
	if req.Branch != "" {
		query = query.Where("branch = ?", req.Branch)
	}

	var sales []database.MachineSale
	if err := query.Order("date ASC, branch ASC").Find(&sales).Error; err != nil {
		return nil, err
	}

	report := newReport("machine", req)
	var totalQty, totalCash float64

	if req.GroupBy == "branch" {
		report.Headers = []string{"Branch", "Quantity", "Total Cash"}
		groups := newGrouper()
		for _, s := range sales {
			groups.add(s.Branch, s.Quantity, s.TotalCash)
			totalQty += s.Quantity
			totalCash += s.TotalCash
		}
		report.Rows = groups.rows()
	} else {
		report.Headers = []string{"Date", "Branch", "Quantity", "Total Cash"}
		for _, s := range sales {
			report.Rows = append(report.Rows, []interface{}{s.Date, s.Branch, s.Quantity, s.TotalCash})
			totalQty += s.Quantity
			totalCash += s.TotalCash
		}
	}

	report.Summary = map[string]interface{}{
		"rows":           len(report.Rows),
		"total_quantity": totalQty,
		"total_cash":     totalCash,
	}
	return report, nil
}

func cashReport(db *gorm.DB, req Request) (*Report, error) {
	query := db.Where("date BETWEEN ? AND ?", req.StartDate, req.EndDate)
	if req.Branch != "" {
		query = query.Where("branch = ?", req.Branch)
	}

	var entries []database.CashEntry
	if err := query.Order("date ASC, branch ASC").Find(&entries).Error; err != nil {
		return nil, err
	}

	report := newReport("cash", req)
	report.Headers = []string{"Date", "Branch", "Expected", "Actual Cash", "Card Payment", "Actual", "Difference", "Status", "Operator"}

	var totalExpected, totalActual, totalDifference float64
	statusCounts := map[string]int{}
	for _, e := range entries {
		report.Rows = append(report.Rows, []interface{}{
			e.Date, e.Branch, e.Expected, e.ActualCash, e.CardPayment, e.Actual, e.Difference, e.Status, e.OperatorName,
		})
		totalExpected += e.Expected
		totalActual += e.Actual
		totalDifference += e.Difference
		statusCounts[e.Status]++
	}

	report.Summary = map[string]interface{}{
		"rows":             len(report.Rows),
		"total_expected":   totalExpected,
		"total_actual":     totalActual,
		"total_difference": totalDifference,
		"match":            statusCounts[database.CashStatusMatch],
		"overage":          statusCounts[database.CashStatusOverage],
		"shortage":         statusCounts[database.CashStatusShortage],
	}
	return report, nil
}

func transfersReport(db *gorm.DB, req Request) (*Report, error) {
	query := db.Where("date BETWEEN ? AND ?", req.StartDate, req.EndDate)
	if req.Branch != "" {
		query = query.Where("sender_branch = ? OR receiver_branch = ?", req.Branch, req.Branch)
	}
	// Transfer records carry their item type, so the filter needs no catalog lookup.
	if req.ItemType != "" {
		query = query.Where("item_type = ?", req.ItemType)
	}

	var records []database.TransferRecord
	if err := query.Preload("Items").Order("date ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	codes := map[string]struct{}{}
	for _, r := range records {
		for _, it := range r.Items {
			codes[it.ItemCode] = struct{}{}
		}
	}
	items, err := itemsByCodes(db, codes)
	if err != nil {
		return nil, err
	}

	report := newReport("transfers", req)
	report.Headers = []string{"Date", "Sender", "Receiver", "Item Type", "Item Code", "Item Name", "Quantity", "Processed By"}

	var totalQty float64
	for _, r := range records {
		for _, it := range r.Items {
			if req.ItemCode != "" && it.ItemCode != req.ItemCode {
				continue
			}
			report.Rows = append(report.Rows, []interface{}{
				r.Date, r.SenderBranch, r.ReceiverBranch, r.ItemType,
				it.ItemCode, itemLabel(items, it.ItemCode), it.Quantity, r.ProcessedBy,
			})
			totalQty += it.Quantity
		}
	}

	report.Summary = map[string]interface{}{
		"rows":           len(report.Rows),
		"transfers":      len(records),
		"total_quantity": totalQty,
	}
	return report, nil
}

func newReport(reportType string, req Request) *Report {
	return &Report{
		ReportType: reportType,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Rows:       [][]interface{}{},
		Summary:    map[string]interface{}{},
	}
}

func groupHeader(groupBy string) string {
	switch groupBy {
	case "item":
		return "Item"
	case "type":
		return "Item Type"
	}
	return "Branch"
}

func groupKey(groupBy string, items map[string]database.Item, code, branch string) string {
	switch groupBy {
	case "item":
		return itemLabel(items, code)
	case "type":
		if item, ok := items[code]; ok && item.ItemType != "" {
			return item.ItemType
		}
		return "Unknown"
	}
	return branch
}

// itemLabel falls back to the raw code when the catalog row is gone
func itemLabel(items map[string]database.Item, code string) string {
	if item, ok := items[code]; ok && item.Name != "" {
		return item.Name
	}
	return code
}

// filterByItemType keeps rows whose owning catalog item has the wanted type.
// Rows whose item is missing from the catalog are dropped: their type cannot
// be established, so they match no type filter.
func filterByItemType[T any](rows []T, items map[string]database.Item, want string, codeOf func(T) string) []T {
	kept := rows[:0]
	for _, row := range rows {
		if item, ok := items[codeOf(row)]; ok && item.ItemType == want {
			kept = append(kept, row)
		}
	}
	return kept
}

func itemIndex[T any](db *gorm.DB, codeOf func(T) string, rows []T) (map[string]database.Item, error) {
	codes := map[string]struct{}{}
	for _, row := range rows {
		codes[codeOf(row)] = struct{}{}
	}
	return itemsByCodes(db, codes)
}

func itemsByCodes(db *gorm.DB, codes map[string]struct{}) (map[string]database.Item, error) {
	if len(codes) == 0 {
		return map[string]database.Item{}, nil
	}
	list := make([]string, 0, len(codes))
	for code := range codes {
		list = append(list, code)
	}

	var items []database.Item
	if err := db.Where("code IN ?", list).Find(&items).Error; err != nil {
		return nil, err
	}
	index := make(map[string]database.Item, len(items))
	for _, item := range items {
		index[item.Code] = item
	}
	return index, nil
}

// grouper accumulates numeric columns per key, preserving first-seen order
type grouper struct {
	order []string
	sums  map[string][]float64
}

func newGrouper() *grouper {
	return &grouper{sums: map[string][]float64{}}
}

func (g *grouper) add(key string, values ...float64) {
	sums, ok := g.sums[key]
	if !ok {
		g.order = append(g.order, key)
		sums = make([]float64, len(values))
	}
	for i, v := range values {
		sums[i] += v
	}
	g.sums[key] = sums
}

func (g *grouper) rows() [][]interface{} {
	rows := make([][]interface{}, 0, len(g.order))
	for _, key := range g.order {
		row := make([]interface{}, 0, len(g.sums[key])+1)
		row = append(row, key)
		for _, v := range g.sums[key] {
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return rows
}
