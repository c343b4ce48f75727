package event

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Encode renders e as JSON.
func Encode(e Event) []byte {
	var w jx.Encoder
	w.Obj(func(w *jx.Encoder) {
		w.Field("id", func(w *jx.Encoder) { w.Str(e.ID.String()) })
		w.Field("type", func(w *jx.Encoder) { w.Str(string(e.Type)) })
		w.Field("orderId", func(w *jx.Encoder) { w.Int64(e.OrderID) })
		w.Field("customerId", func(w *jx.Encoder) { w.Int64(e.CustomerID) })
		w.Field("status", func(w *jx.Encoder) { w.Str(e.Status) })
		w.Field("totalAmount", func(w *jx.Encoder) { w.Str(e.TotalAmount.StringFixed(2)) })
		w.Field("items", func(w *jx.Encoder) {
			w.Arr(func(w *jx.Encoder) {
				for _, it := range e.Items {
					encodeItem(w, it)
				}
			})
		})
		w.Field("occurredAt", func(w *jx.Encoder) { w.Str(e.OccurredAt.UTC().Format(time.RFC3339Nano)) })
	})
	return w.Bytes()
}

func encodeItem(w *jx.Encoder, it Item) {
	w.Obj(func(w *jx.Encoder) {
		w.Field("productId", func(w *jx.Encoder) { w.Int64(it.ProductID) })
		w.Field("name", func(w *jx.Encoder) { w.Str(it.Name) })
		w.Field("quantity", func(w *jx.Encoder) { w.Int(it.Quantity) })
		w.Field("price", func(w *jx.Encoder) { w.Str(it.Price.StringFixed(2)) })
		w.Field("vendorType", func(w *jx.Encoder) { w.Str(it.VendorType) })
		w.Field("vendorId", func(w *jx.Encoder) { w.Int64(it.VendorID) })
	})
}

// Decode parses an event produced by Encode. Unknown fields are skipped.
func Decode(data []byte) (Event, error) {
	var e Event
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			var s string
			if s, err = d.Str(); err == nil {
				e.ID, err = uuid.Parse(s)
			}
		case "type":
			var s string
			s, err = d.Str()
			e.Type = Type(s)
		case "orderId":
			e.OrderID, err = d.Int64()
		case "customerId":
			e.CustomerID, err = d.Int64()
		case "status":
			e.Status, err = d.Str()
		case "totalAmount":
			e.TotalAmount, err = decodeDecimal(d)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				e.Items = append(e.Items, it)
				return nil
			})
		case "occurredAt":
			var s string
			if s, err = d.Str(); err == nil {
				e.OccurredAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return Event{}, errors.Wrap(err, "decode event")
	}
	if e.Type == "" {
		return Event{}, errors.New("decode event: missing type")
	}
	return e, nil
}

func decodeItem(d *jx.Decoder) (Item, error) {
	var it Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			it.ProductID, err = d.Int64()
		case "name":
			it.Name, err = d.Str()
		case "quantity":
			it.Quantity, err = d.Int()
		case "price":
			it.Price, err = decodeDecimal(d)
		case "vendorType":
			it.VendorType, err = d.Str()
		case "vendorId":
			it.VendorID, err = d.Int64()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	return it, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	}
	s, err := d.Str()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(s)
}
