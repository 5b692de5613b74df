package services

import (
	"fmt"
	"io"
	"log"

	"github.com/xuri/excelize/v2"
)

// FleetSheetName имя листа выгрузки парка
const FleetSheetName = "Устройства"

// fleetHeaders колонки выгрузки
var fleetHeaders = []string{"ID", "Name", "Unique ID", "Status", "Latitude", "Longitude", "Speed (km/h)", "Last Update"}

// WriteFleetXLSX записывает в w таблицу устройств с производными статусами на момент среза
func WriteFleetXLSX(w io.Writer, snap *SessionSnapshot) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close Excel file: %v", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", FleetSheetName); err != nil {
		return fmt.Errorf("ошибка создания листа: %w", err)
	}

	for i, header := range fleetHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(FleetSheetName, cell, header)
	}

	for rowIdx, device := range snap.Devices {
		values := []interface{}{device.ID, device.Name, device.UniqueID, string(snap.Status(device))}
		if pos := snap.Position(device.ID); pos != nil {
			values = append(values,
				pos.Latitude,
				pos.Longitude,
				SpeedKmhRounded(pos.Speed),
				pos.ServerTime.UTC().Format("2006-01-02 15:04:05"),
			)
		}

		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(FleetSheetName, cell, value)
		}
	}

	endCell, _ := excelize.CoordinatesToCellName(len(fleetHeaders), len(snap.Devices)+1)
	if err := f.AutoFilter(FleetSheetName, "A1:"+endCell, []excelize.AutoFilterOptions{}); err != nil {
		return fmt.Errorf("ошибка добавления автофильтра: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("ошибка записи xlsx: %w", err)
	}
	return nil
}
