package cars

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"stockoverflow/frontend/shared/respond"
	"stockoverflow/infrastructure/sqlite"
)

func ListCarsQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		cars, err := ListCars(r.Context(), db, CarFilter{
			Status: strings.TrimSpace(q.Get("status")),
			VIN:    strings.TrimSpace(q.Get("vin")),
		})
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, cars)
	}
}

// CreateCarCommandHandler runs the spreadsheet import when the request carries a "file"
// part and otherwise creates a single car.
func CreateCarCommandHandler(db *sqlite.DB, maxUpload int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if isMultipart(r) {
			importUpload(w, r, db, maxUpload)
			return
		}
		var req CarRequest
		if err := respond.DecodeForm(r, &req, maxUpload); err != nil {
			respond.Err(w, r, err)
			return
		}
		car, err := CreateCar(r.Context(), db, req)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, car)
	}
}

// BulkUploadCommandHandler accepts a spreadsheet upload or a JSON array of cars.
func BulkUploadCommandHandler(db *sqlite.DB, maxUpload int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if isMultipart(r) {
			importUpload(w, r, db, maxUpload)
			return
		}
		var raw json.RawMessage
		if err := respond.Decode(r, &raw); err != nil {
			respond.Err(w, r, err)
			return
		}
		var reqs []CarRequest
		if err := json.Unmarshal(raw, &reqs); err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid format. Expected a list of car objects.")
			return
		}
		result, err := BulkCreate(r.Context(), db, reqs)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, result)
	}
}

func importUpload(w http.ResponseWriter, r *http.Request, db *sqlite.DB, maxUpload int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	result, err := ImportCars(r.Context(), db, header.Filename, file)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "multipart/form-data"
}

func GetCarQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		car, err := GetCar(r.Context(), db, id)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, car)
	}
}

func UpdateCarCommandHandler(db *sqlite.DB, partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		var req CarRequest
		if err := respond.DecodeForm(r, &req, 1<<20); err != nil {
			respond.Err(w, r, err)
			return
		}
		car, err := UpdateCar(r.Context(), db, id, req, partial)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, car)
	}
}

func DeleteCarCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		if err := DeleteCar(r.Context(), db, id); err != nil {
			respond.Err(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ScanVINCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VIN string `json:"vin"`
		}
		if err := respond.DecodeForm(r, &req, 1<<20); err != nil {
			respond.Err(w, r, err)
			return
		}
		result, err := ScanVIN(r.Context(), db, req.VIN)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, result)
	}
}

func ListCarPartsQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		parts, err := ListCarParts(r.Context(), db, id)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, parts)
	}
}

func AddCarPartCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.IDParam(r, "id")
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		var req CarPartRequest
		if err := respond.DecodeForm(r, &req, 1<<20); err != nil {
			respond.Err(w, r, err)
			return
		}
		part, err := AddCarPart(r.Context(), db, id, req)
		if err != nil {
			respond.Err(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, part)
	}
}
