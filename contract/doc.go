/*
Package contract is the versioned wire schema shared by the coordinator,
the domain workers and the projector.

Field names are part of the contract and stay verbatim, including the
Portuguese ones the projector expects (saldo, limite, numero, ...).
*/
package contract
