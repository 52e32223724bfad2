package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/tripgeo/internal/station"
)

// Sheet names of the stations workbook.
const (
	SheetStations   = "stations"
	SheetUnresolved = "unresolved"
)

// WriteStationsXLSX saves a workbook with the station assignments and, on a
// second sheet, the stations that fell outside every neighbourhood.
func WriteStationsXLSX(path string, assignments []station.Assignment, unresolved []string) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(SheetStations)
	if err != nil {
		return eris.Wrap(err, "xlsx: add stations sheet")
	}
	addStringRow(sheet, "station", "borough", "neighborhood", "lon", "lat")
	for _, a := range assignments {
		row := sheet.AddRow()
		row.AddCell().SetString(a.Station)
		row.AddCell().SetString(a.Borough)
		row.AddCell().SetString(a.Neighbourhood)
		row.AddCell().SetFloat(a.Point.Lon)
		row.AddCell().SetFloat(a.Point.Lat)
	}

	gaps, err := f.AddSheet(SheetUnresolved)
	if err != nil {
		return eris.Wrap(err, "xlsx: add unresolved sheet")
	}
	addStringRow(gaps, "station")
	for _, name := range unresolved {
		addStringRow(gaps, name)
	}

	return eris.Wrap(f.Save(path), "xlsx: save file")
}

func addStringRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
