package app

import (
	"context"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
	"github.com/ggonzalez94/orderfill/internal/fee"
	"github.com/ggonzalez94/orderfill/internal/fill"
	"github.com/ggonzalez94/orderfill/internal/model"
	"github.com/ggonzalez94/orderfill/internal/order"
	"github.com/ggonzalez94/orderfill/internal/wallet"
	"github.com/ggonzalez94/orderfill/internal/wallet/signer"
)

var fillCommandInfo = map[string]struct{ use, short string }{
	fill.IntentFill:      {"fill", "Fill an order: invert, approve, then submit the match"},
	fill.IntentBuy:       {"buy", "Buy an NFT from a sell order"},
	fill.IntentAcceptBid: {"accept-bid", "Sell an NFT into a bid order"},
}

func bindSignerFlags(cmd *cobra.Command, args *signerArgs) {
	cmd.Flags().StringVar(&args.keySource, "key-source", signer.KeySourceAuto, "Key source (auto|env|file|keystore)")
	cmd.Flags().StringVar(&args.confirmAddress, "confirm-address", "", "Require signer address to match this value")
	cmd.Flags().BoolVar(&args.simulate, "simulate", true, "Run an eth_call preflight before each submission")
	cmd.Flags().Float64Var(&args.gasMultiplier, "gas-multiplier", 1.2, "Gas estimate safety multiplier")
	cmd.Flags().StringVar(&args.maxFeeGwei, "max-fee-gwei", "", "Optional EIP-1559 max fee (gwei)")
	cmd.Flags().StringVar(&args.maxPriorityFeeGwei, "max-priority-fee-gwei", "", "Optional EIP-1559 max priority fee (gwei)")
}

func (s *runtimeState) newFillCommand(intent string) *cobra.Command {
	info := fillCommandInfo[intent]
	var req requestArgs
	var sig signerArgs
	var wait bool
	cmd := &cobra.Command{
		Use:   info.use,
		Short: info.short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			request, err := req.request(cmd)
			if err != nil {
				return err
			}
			txSigner, err := newSigner(sig)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(true)
			defer cancel()
			w, err := s.dialWallet(ctx, txSigner, sig)
			if err != nil {
				return err
			}
			filler, err := s.newFiller(w, true)
			if err != nil {
				return err
			}
			exec, err := startExecution(ctx, filler, intent, request)
			if err != nil {
				return err
			}
			tx, err := exec.Run(ctx)
			if err != nil {
				return withAttempt(err, exec)
			}
			var receipt *wallet.Receipt
			if wait && tx != nil {
				receipt, err = tx.Wait(ctx)
				if err != nil {
					return withAttempt(err, exec)
				}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), fillResultModel(exec, receipt), nil)
		},
	}
	req.bind(cmd, true)
	bindSignerFlags(cmd, &sig)
	cmd.Flags().BoolVar(&wait, "wait", true, "Wait for the fill transaction receipt")
	return cmd
}

func startExecution(ctx context.Context, filler *fill.Filler, intent string, req order.FillRequest) (*fill.Execution, error) {
	switch intent {
	case fill.IntentBuy:
		return filler.Buy(ctx, req)
	case fill.IntentAcceptBid:
		return filler.AcceptBid(ctx, req)
	default:
		return filler.Fill(ctx, req)
	}
}

func withAttempt(err error, exec *fill.Execution) error {
	if cErr, ok := clierr.As(err); ok {
		return cErr.WithDetail("attempt_id", exec.ID()).WithDetail("stage", string(exec.Stage()))
	}
	return clierr.Wrap(clierr.CodeInternal, "run fill", err).WithDetail("attempt_id", exec.ID())
}

func (s *runtimeState) newTxDataCommand() *cobra.Command {
	var req requestArgs
	var from string
	cmd := &cobra.Command{
		Use:   "tx-data",
		Short: "Print the fill transaction without submitting it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			request, err := req.request(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(false)
			defer cancel()

			if from != "" {
				sender, err := parseAddress("--from", from)
				if err != nil {
					return err
				}
				filler, err := s.newFiller(nil, false)
				if err != nil {
					return err
				}
				call, err := filler.BuyTx(ctx, request, sender)
				if err != nil {
					return err
				}
				return s.emitSuccess(trimRootPath(cmd.CommandPath()), callDataModel(&sender, call), nil)
			}

			w, err := s.dialWallet(ctx, nil, signerArgs{simulate: false})
			if err != nil {
				return err
			}
			filler, err := s.newFiller(w, false)
			if err != nil {
				return err
			}
			call, err := filler.TransactionData(ctx, request)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), callDataModel(nil, call), nil)
		},
	}
	req.bind(cmd, true)
	cmd.Flags().StringVar(&from, "from", "", "Sender address; skips the wallet and chain checks")
	return cmd
}

func (s *runtimeState) newInvertCommand() *cobra.Command {
	var req requestArgs
	var from string
	cmd := &cobra.Command{
		Use:   "invert",
		Short: "Print the counter-order a filler would submit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			request, err := req.request(cmd)
			if err != nil {
				return err
			}
			filler, err := parseAddress("--from", from)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(false)
			defer cancel()
			engine, err := s.newFiller(nil, false)
			if err != nil {
				return err
			}
			inverted, err := engine.Dispatcher().Invert(ctx, request, filler)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), inverted, nil)
		},
	}
	req.bind(cmd, true)
	cmd.Flags().StringVar(&from, "from", "", "Filler address")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func (s *runtimeState) newFeeCommand() *cobra.Command {
	var req requestArgs
	cmd := &cobra.Command{
		Use:   "fee",
		Short: "Show the order fee and the protocol base fee",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := req.readOrder(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(false)
			defer cancel()
			engine, err := s.newFiller(nil, false)
			if err != nil {
				return err
			}
			d := engine.Dispatcher()
			orderFee, err := d.OrderFee(ctx, o)
			if err != nil {
				return err
			}
			baseFee, err := d.BaseOrderFillFee(ctx, o)
			if err != nil {
				return err
			}
			quote := model.FeeQuote{
				OrderType:      string(o.Type),
				OrderFeeBps:    orderFee,
				OrderFeePct:    fee.Percent(orderFee).String(),
				BaseFeeBps:     baseFee,
				BaseFeePercent: fee.Percent(baseFee).String(),
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), quote, nil)
		},
	}
	req.bind(cmd, false)
	return cmd
}
