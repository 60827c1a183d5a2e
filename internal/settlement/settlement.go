// Package settlement turns a committed match list into monetary transfer
// instructions and a final pooled balance.
//
// Per match, the producer is paid producerPrice × grossEnergy and the
// consumer is refunded whatever remains of its reservation; consumers left
// unmatched get their full reservation back. All figures are computed in
// reference units and converted to each wallet's native currency with the
// inverse rate. The pooled balance is decremented by every leg and is never
// clamped: a negative final balance is a modeling signal for the caller.
//
// A match referencing a wallet missing from the source books is logged and
// skipped; no single pair can abort the round.
package settlement

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/enermatch/settlement-engine/internal/fx"
	"github.com/enermatch/settlement-engine/internal/geo"
	"github.com/enermatch/settlement-engine/internal/model"
)

// Result is the output of one settlement run: an append-only transfer
// sequence plus the final pooled balance in reference units. Transfers carry
// wallet, native amount, currency, and direction; identifiers and timestamps
// are stamped by the caller at persistence time.
type Result struct {
	Transfers    []model.Transfer
	FinalBalance decimal.Decimal
	Skipped      int // matches dropped because a source record was missing
}

// Settle computes transfers for every committed match and refunds for every
// unmatched consumer. Offers and orders are the raw (native-currency) source
// books; openingBalance is the pooled balance in reference units.
func Settle(matches []model.Match, offers, orders []model.Record, rates fx.RateTable, openingBalance decimal.Decimal) Result {
	res := Result{FinalBalance: openingBalance}

	offerByWallet := indexByWallet(offers)
	orderByWallet := indexByWallet(orders)

	// A consumer named in any committed match is not "unmatched" even if its
	// pair is later skipped; the unmatched refund applies only to consumers
	// absent from the match list entirely.
	matchedConsumers := make(map[string]bool, len(matches))
	for _, match := range matches {
		matchedConsumers[match.Consumer] = true
	}

	for _, match := range matches {
		producer, pok := offerByWallet[match.Producer]
		consumer, cok := orderByWallet[match.Consumer]
		if !pok || !cok {
			slog.Error("settlement data not found, skipping pair",
				"producer", match.Producer,
				"consumer", match.Consumer,
			)
			res.Skipped++
			continue
		}

		dist, err := geo.Distance(producer.Lat, producer.Long, consumer.Lat, consumer.Long)
		if err != nil {
			slog.Error("settlement location unreadable, skipping pair",
				"producer", match.Producer,
				"consumer", match.Consumer,
				"err", err,
			)
			res.Skipped++
			continue
		}
		gross := geo.GrossEnergy(consumer.Amount, dist)

		producerPriceRef, perr := rates.ToReference(producer.Price, producer.Currency)
		consumerPriceRef, cerr := rates.ToReference(consumer.Price, consumer.Currency)
		if perr != nil || cerr != nil {
			slog.Error("settlement rate missing, skipping pair",
				"producer", match.Producer,
				"consumer", match.Consumer,
			)
			res.Skipped++
			continue
		}

		owedRef := producerPriceRef.Mul(gross)
		refundRef := consumerPriceRef.Mul(consumer.Amount).Sub(owedRef)

		owedNative, _ := rates.FromReference(owedRef, producer.Currency)
		refundNative, _ := rates.FromReference(refundRef, consumer.Currency)

		res.FinalBalance = res.FinalBalance.Sub(owedRef).Sub(refundRef)

		res.Transfers = append(res.Transfers, model.Transfer{
			Wallet:    producer.Wallet,
			Amount:    owedNative,
			Currency:  producer.Currency,
			Direction: model.DirectionPay,
		})
		res.Transfers = append(res.Transfers, model.Transfer{
			Wallet:    consumer.Wallet,
			Amount:    refundNative,
			Currency:  consumer.Currency,
			Direction: refundDirection(refundRef),
		})
	}

	// Consumers absent from every committed match get their reservation back.
	for _, consumer := range orders {
		if matchedConsumers[consumer.Wallet] {
			continue
		}
		refundRef, err := rates.ToReference(consumer.Price.Mul(consumer.Amount), consumer.Currency)
		if err != nil {
			slog.Error("settlement rate missing, skipping refund",
				"consumer", consumer.Wallet,
				"currency", consumer.Currency,
			)
			res.Skipped++
			continue
		}
		refundNative, _ := rates.FromReference(refundRef, consumer.Currency)

		res.FinalBalance = res.FinalBalance.Sub(refundRef)
		res.Transfers = append(res.Transfers, model.Transfer{
			Wallet:    consumer.Wallet,
			Amount:    refundNative,
			Currency:  consumer.Currency,
			Direction: model.DirectionRefund,
		})
	}

	return res
}

// refundDirection classifies a consumer refund: negative refunds (the
// consumer owes more than it reserved) are emitted as deficits so callers
// can decide policy instead of the engine clamping.
func refundDirection(refundRef decimal.Decimal) string {
	if refundRef.IsNegative() {
		return model.DirectionDeficit
	}
	return model.DirectionRefund
}

func indexByWallet(book []model.Record) map[string]model.Record {
	idx := make(map[string]model.Record, len(book))
	for _, r := range book {
		idx[r.Wallet] = r
	}
	return idx
}
